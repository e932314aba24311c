package notifier

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/riri-source/AirAlarmBot/internal/telegram"
)

// TelegramNotifier delivers intents through the Bot API. An intent with an
// image key becomes a photo message with the text as caption; when the image
// file is missing or the upload fails, delivery degrades to text-only. The
// degradation is invisible to callers.
type TelegramNotifier struct {
	client *telegram.Client
	images map[string]string // image key -> file path
	log    zerolog.Logger
}

func NewTelegramNotifier(client *telegram.Client, images map[string]string, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		client: client,
		images: images,
		log:    logger.With().Str("notifier", "telegram").Logger(),
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, intent Intent) error {
	if intent.ImageKey != "" {
		path, ok := n.images[intent.ImageKey]
		if ok && fileReadable(path) {
			err := n.client.SendPhoto(ctx, intent.ChatID, path, intent.Text)
			if err == nil {
				return nil
			}
			n.log.Warn().Err(err).Str("image", intent.ImageKey).Msg("photo send failed, falling back to text")
		} else {
			n.log.Warn().Str("image", intent.ImageKey).Msg("image unavailable, sending text only")
		}
	}
	if err := n.client.SendMessage(ctx, intent.ChatID, intent.Text, intent.ParseMode); err != nil {
		return fmt.Errorf("sending message to chat %d: %w", intent.ChatID, err)
	}
	return nil
}

func fileReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
