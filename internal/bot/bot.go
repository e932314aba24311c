package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/riri-source/AirAlarmBot/internal/alerter"
	"github.com/riri-source/AirAlarmBot/internal/curation"
	"github.com/riri-source/AirAlarmBot/internal/feed"
	"github.com/riri-source/AirAlarmBot/internal/notifier"
	"github.com/riri-source/AirAlarmBot/internal/resolver"
	"github.com/riri-source/AirAlarmBot/internal/telegram"
)

// AlertSource is the slice of the feed client the handler needs for ad-hoc
// "is there an alert in X" checks.
type AlertSource interface {
	Fetch(ctx context.Context) ([]feed.Alert, error)
}

const helpText = `🧭 Команди AirAlarmBot

📍 Основні:
/start — перевірити стан бота
/help — показати цей список
/stopbot — зупинити бота (адміністратор)

📡 Моніторинг і запити:
/listregions — області, які зараз бачить API
/exportdict — поточний словник назв (адміністратор)

🗺 Текстові запити:
«що по області» — домашня область
«що по Києву» — м. Київ
«як там Крим?» — Крим
«що по Франику» — Івано-Франківська область
«що по <назві>» — будь-який пункт зі словника

📩 Якщо боту невідомий пункт — він запитає, чи надіслати адміністратору на додавання.`

// Handler routes one inbound message through an ordered first-match-wins
// rule list. Centralizing the order here answers the "is this a special
// phrase" question exactly once instead of as scattered exclusion lists.
type Handler struct {
	adminID    int64
	homeOblast string
	source     AlertSource
	machine    *curation.Machine
	engine     *alerter.Engine // home scope, for /start status
	renderer   *notifier.Renderer
	shortcuts  map[string]string // normalized phrase -> canonical oblast
	rules      []rule
	log        zerolog.Logger
}

type rule struct {
	name   string
	match  func(m *telegram.Message, norm string) bool
	handle func(ctx context.Context, m *telegram.Message, norm string) ([]notifier.Intent, bool)
}

func NewHandler(adminID int64, homeOblast string, source AlertSource, machine *curation.Machine, engine *alerter.Engine, renderer *notifier.Renderer, logger zerolog.Logger) *Handler {
	h := &Handler{
		adminID:    adminID,
		homeOblast: homeOblast,
		source:     source,
		machine:    machine,
		engine:     engine,
		renderer:   renderer,
		log:        logger.With().Str("component", "bot").Logger(),
	}
	// Fixed well-known places answered without consulting the dictionary.
	// Keys are the resolver-normalized form of the inbound phrase.
	h.shortcuts = map[string]string{
		"області": homeOblast,
		"києву":   "м. Київ",
		"києві":   "м. Київ",
		"крим":    "Автономна Республіка Крим",
		"криму":   "Автономна Республіка Крим",
		"франику": "Івано-Франківська область",
	}
	h.rules = []rule{
		{name: "command", match: h.isCommand, handle: h.handleCommand},
		{name: "admin_index", match: h.isAdminIndex, handle: h.handleAdminIndex},
		{name: "curation_reply", match: h.isCurationReply, handle: h.handleCurationReply},
		{name: "shortcut", match: h.isShortcut, handle: h.handleShortcut},
		{name: "location_query", match: h.isLocationQuery, handle: h.handleLocationQuery},
	}
	return h
}

// Handle dispatches one message. The second result requests process
// shutdown; the caller delivers the returned intents first.
func (h *Handler) Handle(ctx context.Context, m *telegram.Message) ([]notifier.Intent, bool) {
	if m == nil || strings.TrimSpace(m.Text) == "" {
		return nil, false
	}
	norm := resolver.Normalize(m.Text)
	for _, r := range h.rules {
		if r.match(m, norm) {
			h.log.Debug().Str("rule", r.name).Str("text", m.Text).Msg("dispatch")
			return r.handle(ctx, m, norm)
		}
	}
	return nil, false
}

func (h *Handler) fromAdmin(m *telegram.Message) bool {
	return h.adminID != 0 && m.From != nil && m.From.ID == h.adminID
}

func command(m *telegram.Message) string {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func (h *Handler) isCommand(m *telegram.Message, _ string) bool {
	return command(m) != ""
}

func (h *Handler) handleCommand(ctx context.Context, m *telegram.Message, _ string) ([]notifier.Intent, bool) {
	switch command(m) {
	case "/start":
		return h.statusReply(m.Chat.ID), false
	case "/help":
		return []notifier.Intent{{ChatID: m.Chat.ID, Text: helpText}}, false
	case "/stopbot":
		if !h.fromAdmin(m) {
			return []notifier.Intent{{ChatID: m.Chat.ID, Text: "⛔️ Лише адміністратор."}}, false
		}
		h.log.Info().Int64("admin", h.adminID).Msg("shutdown requested")
		return []notifier.Intent{{ChatID: m.Chat.ID, Text: "🛑 Зупиняю роботу..."}}, true
	case "/listregions":
		return h.listRegions(ctx, m.Chat.ID), false
	case "/exportdict":
		if !h.fromAdmin(m) {
			return []notifier.Intent{{ChatID: m.Chat.ID, Text: "⛔️ Лише адміністратор."}}, false
		}
		return h.exportDict(m.Chat.ID), false
	}
	// Unknown slash command: stay quiet, the bot may share a group with
	// other bots.
	return nil, false
}

func (h *Handler) statusReply(chatID int64) []notifier.Intent {
	var b strings.Builder
	fmt.Fprintf(&b, "🟢 AirAlarmBot працює. Моніторю: %s.", h.homeOblast)
	if h.engine != nil && h.engine.Initialized() {
		snapshot := h.engine.Snapshot()
		if len(snapshot) == 0 {
			b.WriteString("\n✅ Зараз тривог немає.")
		} else {
			b.WriteString("\n❗️ Активні тривоги:")
			titles := make([]string, 0, len(snapshot))
			for t := range snapshot {
				titles = append(titles, t)
			}
			sort.Strings(titles)
			for _, t := range titles {
				fmt.Fprintf(&b, "\n• %s — %s", t, h.renderer.KindName(snapshot[t]))
			}
		}
	}
	return []notifier.Intent{{ChatID: chatID, Text: b.String()}}
}

func (h *Handler) listRegions(ctx context.Context, chatID int64) []notifier.Intent {
	alerts, err := h.source.Fetch(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("listregions fetch failed")
		return []notifier.Intent{{ChatID: chatID, Text: "⚠️ Не вдалося отримати дані, спробуйте пізніше."}}
	}
	seen := map[string]struct{}{}
	var oblasts []string
	for _, a := range alerts {
		if _, ok := seen[a.Oblast]; !ok && a.Oblast != "" {
			seen[a.Oblast] = struct{}{}
			oblasts = append(oblasts, a.Oblast)
		}
	}
	if len(oblasts) == 0 {
		return []notifier.Intent{{ChatID: chatID, Text: "📡 API зараз не показує жодної області з тривогою."}}
	}
	sort.Strings(oblasts)
	return []notifier.Intent{{ChatID: chatID, Text: "📡 Області у стрічці:\n• " + strings.Join(oblasts, "\n• ")}}
}

func (h *Handler) exportDict(chatID int64) []notifier.Intent {
	dict := h.machine.Dictionary()
	if len(dict) == 0 {
		return []notifier.Intent{{ChatID: chatID, Text: "📖 Словник порожній."}}
	}
	data, err := yaml.Marshal(dict)
	if err != nil {
		return []notifier.Intent{{ChatID: chatID, Text: fmt.Sprintf("⚠️ Не вдалося вивести словник: %v", err)}}
	}
	return []notifier.Intent{{ChatID: chatID, Text: "📖 Словник:\n" + string(data)}}
}

// Bare numeric replies belong to the admin's numbered-menu stages. They are
// consumed even when no selection is pending so a stray "3" in the admin
// chat never falls through to the location-query rule.
func (h *Handler) isAdminIndex(m *telegram.Message, _ string) bool {
	if !h.fromAdmin(m) {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(m.Text))
	return err == nil
}

func (h *Handler) handleAdminIndex(_ context.Context, m *telegram.Message, _ string) ([]notifier.Intent, bool) {
	n, _ := strconv.Atoi(strings.TrimSpace(m.Text))
	return repliesToIntents(h.machine.HandleAdminIndex(n)), false
}

// Any message from a user with a proposal in flight is consumed by the
// curation machine: yes forwards to the admin, everything else declines.
func (h *Handler) isCurationReply(m *telegram.Message, _ string) bool {
	return m.From != nil && h.machine.HasProposal(m.From.ID)
}

func (h *Handler) handleCurationReply(_ context.Context, m *telegram.Message, _ string) ([]notifier.Intent, bool) {
	replies, _ := h.machine.HandleUserReply(m.From.ID, m.Chat.ID, m.Text)
	return repliesToIntents(replies), false
}

func (h *Handler) isShortcut(_ *telegram.Message, norm string) bool {
	_, ok := h.shortcuts[norm]
	return ok
}

func (h *Handler) handleShortcut(ctx context.Context, m *telegram.Message, norm string) ([]notifier.Intent, bool) {
	oblast := h.shortcuts[norm]
	return h.adHocCheck(ctx, m.Chat.ID, oblast, oblast), false
}

// isLocationQuery accepts only texts phrased as a place question, so the
// bot stays silent on unrelated group chatter.
func (h *Handler) isLocationQuery(m *telegram.Message, norm string) bool {
	if norm == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(m.Text))
	for _, p := range []string{"що по ", "що в ", "що у ", "як там ", "what about ", "how is "} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func (h *Handler) handleLocationQuery(ctx context.Context, m *telegram.Message, norm string) ([]notifier.Intent, bool) {
	match, ok := resolver.Resolve(m.Text, h.machine.Dictionary())
	if !ok {
		if m.From == nil {
			return nil, false
		}
		return repliesToIntents(h.machine.ProposeUnknown(m.From.ID, m.Chat.ID, norm)), false
	}
	return h.adHocCheck(ctx, m.Chat.ID, match.Region, match.Subregion), false
}

// adHocCheck answers "is there an alert in X right now" from a fresh feed
// snapshot. Alerts with finished_at set are not active for this purpose.
func (h *Handler) adHocCheck(ctx context.Context, chatID int64, region, subregion string) []notifier.Intent {
	alerts, err := h.source.Fetch(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("region", region).Msg("ad-hoc check fetch failed")
		return []notifier.Intent{{ChatID: chatID, Text: "⚠️ Не вдалося перевірити, спробуйте пізніше."}}
	}

	place := subregion
	if place == "" {
		place = region
	}
	for _, a := range alerts {
		if !a.Active() || a.Oblast != region {
			continue
		}
		if subregion != region && a.Title != subregion {
			continue
		}
		return []notifier.Intent{{ChatID: chatID, Text: fmt.Sprintf("❗️ %s у %s!", h.renderer.KindName(a.Type), place)}}
	}
	return []notifier.Intent{{ChatID: chatID, Text: fmt.Sprintf("✅ Тривога відсутня у %s", place)}}
}

func repliesToIntents(replies []curation.Reply) []notifier.Intent {
	intents := make([]notifier.Intent, 0, len(replies))
	for _, r := range replies {
		intents = append(intents, notifier.Intent{ChatID: r.ChatID, Text: r.Text})
	}
	return intents
}
