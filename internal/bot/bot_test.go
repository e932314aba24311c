package bot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riri-source/AirAlarmBot/internal/alerter"
	"github.com/riri-source/AirAlarmBot/internal/curation"
	"github.com/riri-source/AirAlarmBot/internal/dictionary"
	"github.com/riri-source/AirAlarmBot/internal/feed"
	"github.com/riri-source/AirAlarmBot/internal/notifier"
	"github.com/riri-source/AirAlarmBot/internal/telegram"
)

const (
	adminID  = int64(99)
	userID   = int64(7)
	chatID   = int64(-100500)
	homeName = "Київська область"
)

type fakeSource struct {
	alerts []feed.Alert
	err    error
}

func (f *fakeSource) Fetch(_ context.Context) ([]feed.Alert, error) {
	return f.alerts, f.err
}

var typeNames = map[feed.AlertType]string{
	feed.TypeAirRaid: "Повітряна тривога!",
	feed.TypeOther:   "Інша тривога",
}

func newTestHandler(t *testing.T, source *fakeSource) (*Handler, *curation.Machine, *alerter.Engine) {
	t.Helper()
	store := dictionary.NewStore(filepath.Join(t.TempDir(), "locations.yaml"))
	dict, err := store.Load()
	require.NoError(t, err)
	dict.Set("Київська область", "буча", "Бучанський район")
	dict, err = store.Save(dict)
	require.NoError(t, err)

	regions := []string{"Вінницька область", "Київська область"}
	subregions := []string{"Бучанський район", "м. Київ"}
	machine := curation.NewMachine(store, dict, regions, "Київська область", subregions, adminID, zerolog.Nop())
	engine := alerter.NewEngine(homeName, []string{homeName}, zerolog.Nop())
	renderer := notifier.NewRenderer(typeNames)
	h := NewHandler(adminID, homeName, source, machine, engine, renderer, zerolog.Nop())
	return h, machine, engine
}

func msg(from, chat int64, text string) *telegram.Message {
	return &telegram.Message{From: &telegram.User{ID: from}, Chat: telegram.Chat{ID: chat}, Text: text}
}

func TestHelpCommand(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	intents, stop := h.Handle(context.Background(), msg(userID, chatID, "/help"))
	require.Len(t, intents, 1)
	assert.False(t, stop)
	assert.Contains(t, intents[0].Text, "Команди")
	assert.Equal(t, chatID, intents[0].ChatID)
}

func TestStartCommandReportsState(t *testing.T) {
	h, _, engine := newTestHandler(t, &fakeSource{})

	// Before the first poll nothing is claimed about alert state.
	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "/start"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "працює")

	engine.Tick(nil, nil) // cold start
	engine.Tick([]feed.Alert{{Oblast: homeName, Title: "Бучанський район", Type: feed.TypeAirRaid}}, nil)

	intents, _ = h.Handle(context.Background(), msg(userID, chatID, "/start"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Бучанський район")
	assert.Contains(t, intents[0].Text, "Повітряна тривога!")
}

func TestStopBotAdminOnly(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	intents, stop := h.Handle(context.Background(), msg(userID, chatID, "/stopbot"))
	require.Len(t, intents, 1)
	assert.False(t, stop)
	assert.Contains(t, intents[0].Text, "Лише адміністратор")

	intents, stop = h.Handle(context.Background(), msg(adminID, adminID, "/stopbot"))
	require.Len(t, intents, 1)
	assert.True(t, stop)
	assert.Contains(t, intents[0].Text, "Зупиняю")
}

func TestCommandWithBotSuffix(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "/help@AirAlarmBot"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Команди")
}

func TestListRegions(t *testing.T) {
	source := &fakeSource{alerts: []feed.Alert{
		{Oblast: "Львівська область", Title: "Львівський район", Type: feed.TypeAirRaid},
		{Oblast: "Київська область", Title: "Бучанський район", Type: feed.TypeAirRaid},
		{Oblast: "Львівська область", Title: "Інший район", Type: feed.TypeAirRaid},
	}}
	h, _, _ := newTestHandler(t, source)

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "/listregions"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Київська область")
	assert.Contains(t, intents[0].Text, "Львівська область")
}

func TestExportDictAdminOnly(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "/exportdict"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Лише адміністратор")

	intents, _ = h.Handle(context.Background(), msg(adminID, adminID, "/exportdict"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "буча")
}

func TestShortcutBypassesDictionary(t *testing.T) {
	source := &fakeSource{alerts: []feed.Alert{
		{Oblast: "м. Київ", Title: "м. Київ", Type: feed.TypeAirRaid},
	}}
	h, _, _ := newTestHandler(t, source)

	// "м. Київ" is not in the dictionary; the shortcut answers anyway.
	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "Що по Києву?"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "❗️")
	assert.Contains(t, intents[0].Text, "м. Київ")

	source.alerts = nil
	intents, _ = h.Handle(context.Background(), msg(userID, chatID, "що по області"))
	require.Len(t, intents, 1)
	assert.Equal(t, "✅ Тривога відсутня у Київська область", intents[0].Text)
}

func TestLocationQueryResolved(t *testing.T) {
	source := &fakeSource{alerts: []feed.Alert{
		{Oblast: "Київська область", Title: "Бучанський район", Type: feed.TypeAirRaid},
	}}
	h, _, _ := newTestHandler(t, source)

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "що по Буча"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Повітряна тривога!")
	assert.Contains(t, intents[0].Text, "Бучанський район")
}

func TestLocationQuerySubregionMustMatchTitle(t *testing.T) {
	// Alert elsewhere in the oblast must not light up a different raion.
	source := &fakeSource{alerts: []feed.Alert{
		{Oblast: "Київська область", Title: "Обухівський район", Type: feed.TypeAirRaid},
	}}
	h, _, _ := newTestHandler(t, source)

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "що по Буча"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "✅")
}

func TestLocationQueryIgnoresFinishedAlerts(t *testing.T) {
	ts := "2024-03-01T10:00:00Z"
	source := &fakeSource{alerts: []feed.Alert{
		{Oblast: "Київська область", Title: "Бучанський район", Type: feed.TypeAirRaid, FinishedAt: &ts},
	}}
	h, _, _ := newTestHandler(t, source)

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "що по Буча"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "✅")
}

func TestLocationQueryFeedDown(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{err: feed.ErrFeedUnavailable})

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "що по Буча"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "спробуйте пізніше")
}

func TestUnknownQueryStartsCuration(t *testing.T) {
	h, machine, _ := newTestHandler(t, &fakeSource{})

	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "що по Гостомелю"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "Надіслати адміністратору")
	assert.True(t, machine.HasProposal(userID))

	// "так" routes through the curation rule, not the query rule.
	intents, _ = h.Handle(context.Background(), msg(userID, chatID, "так"))
	require.Len(t, intents, 2)
	assert.Equal(t, adminID, intents[1].ChatID)
	assert.Contains(t, intents[1].Text, "гостомелю")

	// Admin picks region 1 (non-special) — entry is committed.
	intents, _ = h.Handle(context.Background(), msg(adminID, adminID, "1"))
	require.Len(t, intents, 1)
	assert.Contains(t, intents[0].Text, "✅ Додано")
}

func TestAdminStrayNumberIsSwallowed(t *testing.T) {
	h, machine, _ := newTestHandler(t, &fakeSource{})

	// No pending selection: the number must not become a location query.
	intents, _ := h.Handle(context.Background(), msg(adminID, adminID, "3"))
	assert.Empty(t, intents)
	assert.False(t, machine.HasProposal(adminID))
}

func TestUserNumberIsNotAdminIndex(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	// Plain numbers from ordinary users are just chatter.
	intents, _ := h.Handle(context.Background(), msg(userID, chatID, "3"))
	assert.Empty(t, intents)
}

func TestUnrelatedChatterIgnored(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{})

	intents, stop := h.Handle(context.Background(), msg(userID, chatID, "добрий вечір всім"))
	assert.Empty(t, intents)
	assert.False(t, stop)

	intents, _ = h.Handle(context.Background(), msg(userID, chatID, ""))
	assert.Empty(t, intents)
}
