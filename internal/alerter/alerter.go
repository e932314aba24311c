package alerter

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/riri-source/AirAlarmBot/internal/feed"
	"github.com/riri-source/AirAlarmBot/internal/metrics"
)

type EventType string

const (
	// EventStarted covers both a fresh alert and an alert whose kind
	// changed. A kind change is re-announced, never suppressed: an
	// air-raid escalating to chemical must not stay silent.
	EventStarted  EventType = "STARTED"
	EventEnded    EventType = "ENDED"
	EventAllClear EventType = "ALL_CLEAR"
)

// Event is one alert transition observed by a scope within one tick.
type Event struct {
	Type  EventType
	Scope string
	Title string
	Kind  feed.AlertType
}

// ActiveState is the remembered snapshot of which canonical locations have
// an active alert, and of what kind.
type ActiveState map[string]feed.AlertType

// Engine diffs each polled feed snapshot against the previous one for a
// single monitored scope and emits started/ended/all-clear events. Two
// states: uninitialized (first successful fetch only snapshots — the bot
// must never announce alerts that predate it) and tracking.
type Engine struct {
	scope       string
	oblasts     map[string]struct{} // empty set means every oblast
	state       ActiveState
	initialized bool
	log         zerolog.Logger
}

// NewEngine creates an engine for one scope. An empty oblast list makes the
// scope country-wide.
func NewEngine(scope string, oblasts []string, logger zerolog.Logger) *Engine {
	set := make(map[string]struct{}, len(oblasts))
	for _, o := range oblasts {
		set[o] = struct{}{}
	}
	return &Engine{
		scope:   scope,
		oblasts: set,
		state:   ActiveState{},
		log:     logger.With().Str("scope", scope).Logger(),
	}
}

func (e *Engine) Scope() string {
	return e.scope
}

func (e *Engine) Initialized() bool {
	return e.initialized
}

// Snapshot returns a copy of the current state for status queries.
func (e *Engine) Snapshot() ActiveState {
	out := make(ActiveState, len(e.state))
	for title, kind := range e.state {
		out[title] = kind
	}
	return out
}

// Tick reconciles one poll result against remembered state.
//
// A failed fetch freezes the tick: no events, no mutation. Treating a fetch
// failure as "zero alerts" would fire false all-clear notifications every
// time the feed has an outage.
//
// Event order within a tick is fixed: started, then ended, then all-clear,
// so a recipient never reads "all clear" followed by a new alert from the
// same atomic transition window. Delivery downstream is at-most-once; the
// engine keeps no retry buffer.
func (e *Engine) Tick(alerts []feed.Alert, fetchErr error) []Event {
	if fetchErr != nil {
		e.log.Warn().Err(fetchErr).Msg("feed fetch failed, skipping tick")
		return nil
	}

	newState := ActiveState{}
	for _, a := range alerts {
		if !a.Active() {
			continue
		}
		if len(e.oblasts) > 0 {
			if _, ok := e.oblasts[a.Oblast]; !ok {
				continue
			}
		}
		newState[a.Title] = a.Type
	}

	if !e.initialized {
		e.state = newState
		e.initialized = true
		e.log.Info().Int("active", len(newState)).Msg("initial snapshot taken, suppressing notifications")
		return nil
	}

	var events []Event

	for _, title := range sortedTitles(newState) {
		kind := newState[title]
		if e.state[title] != kind {
			events = append(events, Event{Type: EventStarted, Scope: e.scope, Title: title, Kind: kind})
		}
	}

	for _, title := range sortedTitles(e.state) {
		if _, ok := newState[title]; !ok {
			events = append(events, Event{Type: EventEnded, Scope: e.scope, Title: title, Kind: e.state[title]})
		}
	}

	if len(e.state) > 0 && len(newState) == 0 {
		events = append(events, Event{Type: EventAllClear, Scope: e.scope})
	}

	e.state = newState

	for _, ev := range events {
		metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
		e.log.Info().
			Str("event", string(ev.Type)).
			Str("title", ev.Title).
			Str("kind", string(ev.Kind)).
			Msg("alert transition")
	}
	return events
}

func sortedTitles(s ActiveState) []string {
	titles := make([]string, 0, len(s))
	for t := range s {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}
