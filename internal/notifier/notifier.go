package notifier

import (
	"context"
	"fmt"

	"github.com/riri-source/AirAlarmBot/internal/alerter"
	"github.com/riri-source/AirAlarmBot/internal/feed"
)

// Image keys an Intent may reference. The Telegram notifier maps them to
// configured file paths; other notifiers may ignore them.
const (
	ImageAlarm = "alarm"
	ImageClear = "clear"
)

// Intent is a notification the core wants delivered: recipient, text and an
// optional image. The core never talks to the platform directly.
type Intent struct {
	ChatID    int64
	Text      string
	ImageKey  string
	ParseMode string
}

// Notifier delivers intents to the messaging platform. Delivery is best
// effort: a failure is reported back but the intent is never requeued.
type Notifier interface {
	Notify(ctx context.Context, intent Intent) error
}

// Renderer turns alert transition events into notification intents, using
// the configured display names for alert kinds.
type Renderer struct {
	typeNames map[feed.AlertType]string
}

func NewRenderer(typeNames map[feed.AlertType]string) *Renderer {
	return &Renderer{typeNames: typeNames}
}

// KindName returns the display name for an alert kind, falling back to the
// "other" name for kinds the config does not know.
func (r *Renderer) KindName(kind feed.AlertType) string {
	if name, ok := r.typeNames[kind]; ok {
		return name
	}
	return r.typeNames[feed.TypeOther]
}

// Render produces the intent for one event addressed to one chat.
func (r *Renderer) Render(ev alerter.Event, chatID int64) Intent {
	switch ev.Type {
	case alerter.EventStarted:
		return Intent{
			ChatID:   chatID,
			Text:     fmt.Sprintf("❗️ %s у %s!", r.KindName(ev.Kind), ev.Title),
			ImageKey: ImageAlarm,
		}
	case alerter.EventEnded:
		return Intent{
			ChatID: chatID,
			Text:   fmt.Sprintf("✅ Відбій тривоги у %s", ev.Title),
		}
	case alerter.EventAllClear:
		return Intent{
			ChatID:   chatID,
			Text:     fmt.Sprintf("✅ Тривога відсутня у %s", ev.Scope),
			ImageKey: ImageClear,
		}
	}
	return Intent{ChatID: chatID, Text: fmt.Sprintf("%s: %s", ev.Type, ev.Title)}
}
