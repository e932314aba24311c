package curation

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/riri-source/AirAlarmBot/internal/dictionary"
	"github.com/riri-source/AirAlarmBot/internal/metrics"
	"github.com/riri-source/AirAlarmBot/internal/resolver"
)

// Reply is an outbound message the machine wants sent. The caller delivers
// it; the machine never talks to the platform.
type Reply struct {
	ChatID int64
	Text   string
}

// Stage of the admin half of the conversation.
type Stage int

const (
	StageAwaitingRegion Stage = iota + 1
	StageAwaitingSubregion
)

// PendingProposal is an unresolved place name waiting for the proposing
// user's yes/no. One per user, never persisted.
type PendingProposal struct {
	RawKeyword string
}

// AdminSelection is the single process-wide numbered-menu interaction with
// the administrator. Only the fields valid for the current stage are set.
type AdminSelection struct {
	Keyword      string
	Stage        Stage
	ChosenRegion string
}

// Machine drives the conversation that turns an unrecognized place name
// into a permanent dictionary entry with administrator consent. It is a
// strict linear flow: one proposal in flight per user, one admin selection
// in flight process-wide (a newer proposal overwrites an older admin
// selection — accepted single-admin limitation).
type Machine struct {
	store      *dictionary.Store
	dict       dictionary.Dictionary
	regions    []string
	special    string // the one region whose subdivisions matter
	subregions []string
	adminChat  int64
	proposals  map[int64]PendingProposal
	pending    *AdminSelection
	log        zerolog.Logger
}

func NewMachine(store *dictionary.Store, dict dictionary.Dictionary, regions []string, special string, subregions []string, adminChat int64, logger zerolog.Logger) *Machine {
	return &Machine{
		store:      store,
		dict:       dict,
		regions:    regions,
		special:    special,
		subregions: subregions,
		adminChat:  adminChat,
		proposals:  make(map[int64]PendingProposal),
		log:        logger.With().Str("component", "curation").Logger(),
	}
}

// Dictionary returns the current in-memory dictionary, refreshed after
// every successful save.
func (m *Machine) Dictionary() dictionary.Dictionary {
	return m.dict
}

// HasProposal reports whether a proposal is pending for the user.
func (m *Machine) HasProposal(userID int64) bool {
	_, ok := m.proposals[userID]
	return ok
}

// HasAdminSelection reports whether an admin menu interaction is in flight.
func (m *Machine) HasAdminSelection() bool {
	return m.pending != nil
}

// ProposeUnknown starts the flow for a place the resolver did not know.
func (m *Machine) ProposeUnknown(userID, chatID int64, keyword string) []Reply {
	m.proposals[userID] = PendingProposal{RawKeyword: keyword}
	return []Reply{{
		ChatID: chatID,
		Text:   fmt.Sprintf("🤔 Я не знаю пункту «%s». Надіслати адміністратору на додавання? (так/ні)", keyword),
	}}
}

// HandleUserReply consumes a message from a user with a pending proposal.
// "так"/"yes" forwards the keyword to the admin as a numbered region menu;
// anything else discards the proposal. Returns false when the user has no
// proposal pending, so the caller can route the message elsewhere.
func (m *Machine) HandleUserReply(userID, chatID int64, text string) ([]Reply, bool) {
	proposal, ok := m.proposals[userID]
	if !ok {
		return nil, false
	}
	delete(m.proposals, userID)

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "так", "yes":
		if m.adminChat == 0 {
			return []Reply{{ChatID: chatID, Text: "⚠️ Адміністратора не налаштовано, не можу надіслати."}}, true
		}
		m.pending = &AdminSelection{Keyword: proposal.RawKeyword, Stage: StageAwaitingRegion}
		m.log.Info().Str("keyword", proposal.RawKeyword).Int64("user", userID).Msg("proposal forwarded to admin")
		return []Reply{
			{ChatID: chatID, Text: "📩 Надіслано адміністратору. Дякую!"},
			{ChatID: m.adminChat, Text: m.regionMenu(proposal.RawKeyword)},
		}, true
	default:
		return []Reply{{ChatID: chatID, Text: "👌 Гаразд, не надсилаю."}}, true
	}
}

// HandleAdminIndex consumes a bare numeric reply from the administrator.
// With no selection in flight it is a deliberate no-op: a stray number must
// not mutate anything. An out-of-range index reports the error and keeps
// the stage unchanged.
func (m *Machine) HandleAdminIndex(index int) []Reply {
	if m.pending == nil {
		return nil
	}

	switch m.pending.Stage {
	case StageAwaitingRegion:
		if index < 1 || index > len(m.regions) {
			return []Reply{{ChatID: m.adminChat, Text: fmt.Sprintf("⚠️ Невірний номер. Оберіть від 1 до %d.", len(m.regions))}}
		}
		region := m.regions[index-1]
		if region == m.special && len(m.subregions) > 0 {
			m.pending.Stage = StageAwaitingSubregion
			m.pending.ChosenRegion = region
			return []Reply{{ChatID: m.adminChat, Text: m.subregionMenu()}}
		}
		return m.commit(region, region)

	case StageAwaitingSubregion:
		if index < 1 || index > len(m.subregions) {
			return []Reply{{ChatID: m.adminChat, Text: fmt.Sprintf("⚠️ Невірний номер. Оберіть від 1 до %d.", len(m.subregions))}}
		}
		return m.commit(m.pending.ChosenRegion, m.subregions[index-1])
	}
	return nil
}

// commit writes the pending keyword into the dictionary and persists it.
// On a save failure the in-memory mutation is reverted so memory and disk
// stay in lockstep, and the failure is surfaced to the admin.
func (m *Machine) commit(region, label string) []Reply {
	keyword := m.pending.Keyword
	m.pending = nil

	alias := resolver.Normalize(keyword)
	if alias == "" {
		return []Reply{{ChatID: m.adminChat, Text: fmt.Sprintf("⚠️ «%s» нормалізується у порожній рядок, не додаю.", keyword)}}
	}

	m.dict.Set(region, alias, label)
	reloaded, err := m.store.Save(m.dict)
	if err != nil {
		m.dict.Delete(region, alias)
		metrics.DictionarySaveErrors.Inc()
		m.log.Error().Err(err).Str("alias", alias).Msg("dictionary save failed")
		return []Reply{{ChatID: m.adminChat, Text: fmt.Sprintf("⚠️ Не вдалося зберегти словник: %v", err)}}
	}
	m.dict = reloaded
	metrics.DictionarySaves.Inc()
	m.log.Info().Str("alias", alias).Str("region", region).Str("label", label).Msg("dictionary entry added")
	return []Reply{{ChatID: m.adminChat, Text: fmt.Sprintf("✅ Додано: «%s» → %s (%s)", alias, label, region)}}
}

func (m *Machine) regionMenu(keyword string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 Нове слово від користувача: «%s»\nОберіть область (номер):\n", keyword)
	for i, r := range m.regions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Machine) subregionMenu() string {
	var b strings.Builder
	b.WriteString("Оберіть район (номер):\n")
	for i, s := range m.subregions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return strings.TrimRight(b.String(), "\n")
}
