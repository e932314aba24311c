package metrics

// All counters the service exposes on /metrics. Kept in one place so the
// Grafana side has a single file to read for names and meanings.

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names
const (
	PollTicksName            = "poll_ticks"
	FeedFetchErrorsName      = "feed_fetch_errors"
	EventsEmittedName        = "alert_events_emitted"
	NotificationsSentName    = "notifications_sent"
	NotificationsFailedName  = "notifications_failed"
	DictionarySavesName      = "dictionary_saves"
	DictionarySaveErrorsName = "dictionary_save_errors"
)

// Metric helps
const (
	PollTicksHelp            = "The total number of reconciliation ticks executed"
	FeedFetchErrorsHelp      = "The total number of failed alert feed fetches"
	EventsEmittedHelp        = "The total number of alert transition events emitted, by event type"
	NotificationsSentHelp    = "The total number of notifications delivered to the messaging platform"
	NotificationsFailedHelp  = "The total number of notification deliveries that failed"
	DictionarySavesHelp      = "The total number of successful location dictionary writes"
	DictionarySaveErrorsHelp = "The total number of failed location dictionary writes"
)

var PollTicks = promauto.NewCounter(prometheus.CounterOpts{
	Name: PollTicksName,
	Help: PollTicksHelp,
})

var FeedFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: FeedFetchErrorsName,
	Help: FeedFetchErrorsHelp,
})

var EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: EventsEmittedName,
	Help: EventsEmittedHelp,
}, []string{"type"})

var NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotificationsSentName,
	Help: NotificationsSentHelp,
})

var NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotificationsFailedName,
	Help: NotificationsFailedHelp,
})

var DictionarySaves = promauto.NewCounter(prometheus.CounterOpts{
	Name: DictionarySavesName,
	Help: DictionarySavesHelp,
})

var DictionarySaveErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: DictionarySaveErrorsName,
	Help: DictionarySaveErrorsHelp,
})
