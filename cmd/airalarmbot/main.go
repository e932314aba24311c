package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riri-source/AirAlarmBot/internal/alerter"
	"github.com/riri-source/AirAlarmBot/internal/bot"
	"github.com/riri-source/AirAlarmBot/internal/config"
	"github.com/riri-source/AirAlarmBot/internal/curation"
	"github.com/riri-source/AirAlarmBot/internal/dictionary"
	"github.com/riri-source/AirAlarmBot/internal/feed"
	"github.com/riri-source/AirAlarmBot/internal/metrics"
	"github.com/riri-source/AirAlarmBot/internal/notifier"
	"github.com/riri-source/AirAlarmBot/internal/poller"
	"github.com/riri-source/AirAlarmBot/internal/status"
	"github.com/riri-source/AirAlarmBot/internal/telegram"
)

var (
	configFile string
	envFile    string
)

func init() {
	flag.StringVar(&configFile, "config", "config.yaml", "Path to the configuration file (optional).")
	flag.StringVar(&envFile, "env", ".env", "Path to the .env file (optional).")
}

func buildNotifier(cfg *config.Config, logger zerolog.Logger) (notifier.Notifier, *telegram.Client) {
	if cfg.Channel == "stdout" {
		return notifier.NewStdoutNotifier(), nil
	}
	tg := telegram.NewClient(cfg.BotToken)
	images := map[string]string{
		notifier.ImageAlarm: cfg.Images.Alarm,
		notifier.ImageClear: cfg.Images.Clear,
	}
	return notifier.NewTelegramNotifier(tg, images, logger), tg
}

func testNotification(cfg *config.Config, logger zerolog.Logger) {
	n, _ := buildNotifier(cfg, logger)
	chatID := cfg.ChatID
	if chatID == 0 {
		chatID = cfg.AdminID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := n.Notify(ctx, notifier.Intent{
		ChatID:   chatID,
		Text:     "✅ Тестове повідомлення від AirAlarmBot",
		ImageKey: notifier.ImageClear,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("test notification failed")
	}
	log.Info().Int64("chat", chatID).Msg("test notification sent")
}

func main() {
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", envFile).Msg("could not load .env file")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	log.Logger = logger

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if args := flag.Args(); len(args) > 0 && args[0] == "test-notification" {
		testNotification(cfg, logger)
		return
	}

	log.Info().
		Str("home_oblast", cfg.HomeOblast).
		Int("poll_interval_s", cfg.PollIntervalSeconds).
		Int("scopes", len(cfg.Scopes)).
		Str("channel", cfg.Channel).
		Msg("starting AirAlarmBot")

	store := dictionary.NewStore(cfg.DictionaryPath)
	dict, err := store.Load()
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DictionaryPath).Msg("failed to load location dictionary")
	}
	log.Info().Int("regions", len(dict)).Str("path", cfg.DictionaryPath).Msg("location dictionary loaded")

	feedClient := feed.NewClient(cfg.FeedURL, cfg.AlertsToken)
	notify, tg := buildNotifier(cfg, logger)
	renderer := notifier.NewRenderer(cfg.TypeNames())

	engines := make([]*alerter.Engine, len(cfg.Scopes))
	for i, sc := range cfg.Scopes {
		engines[i] = alerter.NewEngine(sc.Name, sc.Oblasts, logger)
	}

	machine := curation.NewMachine(store, dict, cfg.Regions, cfg.SpecialRegion, cfg.Subregions, cfg.AdminID, logger)
	handler := bot.NewHandler(cfg.AdminID, cfg.HomeOblast, feedClient, machine, engines[0], renderer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statusServer := status.New(cfg.StatusAddr, logger)
	statusServer.Start()

	deliver := func(ctx context.Context, intents []notifier.Intent) {
		for _, intent := range intents {
			if err := notify.Notify(ctx, intent); err != nil {
				metrics.NotificationsFailed.Inc()
				log.Error().Err(err).Int64("chat", intent.ChatID).Msg("notification delivery failed")
				continue
			}
			metrics.NotificationsSent.Inc()
		}
	}

	// Tick processing and inbound handling never run their state mutation
	// concurrently; this mutex is the Go rendition of the original's single
	// cooperative scheduler.
	var mu sync.Mutex

	tick := func(alerts []feed.Alert, fetchErr error) {
		mu.Lock()
		var intents []notifier.Intent
		for i, eng := range engines {
			for _, ev := range eng.Tick(alerts, fetchErr) {
				intents = append(intents, renderer.Render(ev, cfg.Scopes[i].ChatID))
			}
		}
		mu.Unlock()
		deliver(ctx, intents)
	}

	p := poller.New(clock.New(), cfg.PollInterval, feedClient.Fetch, tick, logger)
	go p.Run(ctx)

	if tg != nil {
		handle := func(ctx context.Context, m *telegram.Message) ([]notifier.Intent, bool) {
			mu.Lock()
			defer mu.Unlock()
			return handler.Handle(ctx, m)
		}
		go runUpdateLoop(ctx, stop, tg, handle, deliver, logger)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown failed")
	}
	log.Info().Msg("AirAlarmBot stopped")
}

// runUpdateLoop long polls Telegram for inbound messages and routes them
// through the dispatcher. A /stopbot from the admin cancels the whole
// process after its confirmation is delivered.
func runUpdateLoop(ctx context.Context, stop func(), tg *telegram.Client, handle func(context.Context, *telegram.Message) ([]notifier.Intent, bool), deliver func(context.Context, []notifier.Intent), logger zerolog.Logger) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := tg.GetUpdates(ctx, offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			intents, stopRequested := handle(ctx, u.Message)
			deliver(ctx, intents)
			if stopRequested {
				stop()
				return
			}
		}
	}
}
