package curation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riri-source/AirAlarmBot/internal/dictionary"
	"github.com/riri-source/AirAlarmBot/internal/resolver"
)

const (
	adminChat = int64(99)
	userID    = int64(7)
	userChat  = int64(7)
)

var testRegions = []string{
	"Автономна Республіка Крим",
	"Вінницька область",
	"Волинська область",
	"Київська область",
}

var testSubregions = []string{
	"Бучанський район",
	"Броварський район",
	"м. Київ",
}

func newTestMachine(t *testing.T) (*Machine, *dictionary.Store) {
	t.Helper()
	store := dictionary.NewStore(filepath.Join(t.TempDir(), "locations.yaml"))
	dict, err := store.Load()
	require.NoError(t, err)
	m := NewMachine(store, dict, testRegions, "Київська область", testSubregions, adminChat, zerolog.Nop())
	return m, store
}

func TestCurationRoundTrip(t *testing.T) {
	m, store := newTestMachine(t)

	replies := m.ProposeUnknown(userID, userChat, "Гостомель")
	require.Len(t, replies, 1)
	assert.Equal(t, userChat, replies[0].ChatID)
	assert.Contains(t, replies[0].Text, "Гостомель")
	assert.True(t, m.HasProposal(userID))

	replies, consumed := m.HandleUserReply(userID, userChat, "так")
	require.True(t, consumed)
	require.Len(t, replies, 2)
	assert.Equal(t, userChat, replies[0].ChatID)
	assert.Equal(t, adminChat, replies[1].ChatID)
	assert.Contains(t, replies[1].Text, "1. Автономна Республіка Крим")
	assert.False(t, m.HasProposal(userID))
	assert.True(t, m.HasAdminSelection())

	// Index 3 is a non-special region.
	replies = m.HandleAdminIndex(3)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "✅ Додано")
	assert.False(t, m.HasAdminSelection())

	// Persisted: a fresh load sees the normalized alias mapped to the region.
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Волинська область", loaded["Волинська область"]["гостомель"])

	// And the resolver immediately resolves the original keyword.
	match, ok := resolver.Resolve("Гостомель", m.Dictionary())
	require.True(t, ok)
	assert.Equal(t, "Волинська область", match.Region)
}

func TestSubregionFlow(t *testing.T) {
	m, store := newTestMachine(t)

	m.ProposeUnknown(userID, userChat, "Ворзель")
	_, consumed := m.HandleUserReply(userID, userChat, "так")
	require.True(t, consumed)

	// Index 4 is the special region with subdivisions.
	replies := m.HandleAdminIndex(4)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Оберіть район")
	assert.Contains(t, replies[0].Text, "1. Бучанський район")
	assert.True(t, m.HasAdminSelection())

	replies = m.HandleAdminIndex(1)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "✅ Додано")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Бучанський район", loaded["Київська область"]["ворзель"])
}

func TestDeclineLeavesFileUntouched(t *testing.T) {
	m, store := newTestMachine(t)
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	m.ProposeUnknown(userID, userChat, "Гостомель")
	replies, consumed := m.HandleUserReply(userID, userChat, "ні")
	require.True(t, consumed)
	require.Len(t, replies, 1)
	assert.Equal(t, userChat, replies[0].ChatID)
	assert.False(t, m.HasProposal(userID))
	assert.False(t, m.HasAdminSelection())

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "decline must leave the dictionary file byte-for-byte unchanged")
}

func TestDistractionDiscardsProposal(t *testing.T) {
	m, _ := newTestMachine(t)

	m.ProposeUnknown(userID, userChat, "Гостомель")
	replies, consumed := m.HandleUserReply(userID, userChat, "а коли відбій?")
	require.True(t, consumed)
	require.Len(t, replies, 1)
	assert.False(t, m.HasProposal(userID))
	assert.False(t, m.HasAdminSelection())
}

func TestInvalidAdminIndexKeepsStage(t *testing.T) {
	m, _ := newTestMachine(t)

	m.ProposeUnknown(userID, userChat, "Гостомель")
	m.HandleUserReply(userID, userChat, "так")

	// Out of range: exactly one error reply, selection unchanged.
	replies := m.HandleAdminIndex(len(testRegions) + 1)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Невірний номер")
	assert.True(t, m.HasAdminSelection())

	replies = m.HandleAdminIndex(0)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Невірний номер")

	// A valid index afterwards still works — no state corruption.
	replies = m.HandleAdminIndex(2)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "✅ Додано")
}

func TestStrayNumberWithoutSelectionIsNoOp(t *testing.T) {
	m, _ := newTestMachine(t)
	assert.Nil(t, m.HandleAdminIndex(3))
	assert.Empty(t, m.Dictionary())
}

func TestReplyWithoutProposalNotConsumed(t *testing.T) {
	m, _ := newTestMachine(t)
	replies, consumed := m.HandleUserReply(userID, userChat, "так")
	assert.False(t, consumed)
	assert.Nil(t, replies)
}

func TestNewerProposalOverwritesAdminSelection(t *testing.T) {
	m, _ := newTestMachine(t)

	m.ProposeUnknown(userID, userChat, "Гостомель")
	m.HandleUserReply(userID, userChat, "так")

	otherUser, otherChat := int64(8), int64(8)
	m.ProposeUnknown(otherUser, otherChat, "Ворзель")
	m.HandleUserReply(otherUser, otherChat, "так")

	// Single-admin limitation: the second keyword wins.
	replies := m.HandleAdminIndex(2)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "ворзель")
}

func TestSaveFailureSurfacedAndReverted(t *testing.T) {
	// Store pointed at a directory that does not exist: every save fails.
	store := dictionary.NewStore(filepath.Join(t.TempDir(), "missing", "locations.yaml"))
	m := NewMachine(store, dictionary.Dictionary{}, testRegions, "Київська область", testSubregions, adminChat, zerolog.Nop())

	m.ProposeUnknown(userID, userChat, "Гостомель")
	m.HandleUserReply(userID, userChat, "так")

	replies := m.HandleAdminIndex(2)
	require.Len(t, replies, 1)
	assert.Equal(t, adminChat, replies[0].ChatID)
	assert.True(t, strings.Contains(replies[0].Text, "Не вдалося зберегти"))

	// In-memory copy reverted so memory and disk stay consistent.
	assert.Empty(t, m.Dictionary())
	assert.False(t, m.HasAdminSelection())
}
