package poller

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/riri-source/AirAlarmBot/internal/feed"
	"github.com/riri-source/AirAlarmBot/internal/metrics"
)

// FetchFunc produces one feed snapshot.
type FetchFunc func(ctx context.Context) ([]feed.Alert, error)

// TickFunc consumes one snapshot together with the fetch error, so the
// reconciliation side can distinguish "zero alerts" from "fetch failed".
type TickFunc func(alerts []feed.Alert, fetchErr error)

// Poller runs the reconciliation tick on a fixed interval. The clock is
// injectable so tick ordering and cold-start behavior are testable without
// real timers.
type Poller struct {
	clock    clock.Clock
	interval time.Duration
	fetch    FetchFunc
	tick     TickFunc
	log      zerolog.Logger
}

func New(clk clock.Clock, interval time.Duration, fetch FetchFunc, tick TickFunc, logger zerolog.Logger) *Poller {
	return &Poller{
		clock:    clk,
		interval: interval,
		fetch:    fetch,
		tick:     tick,
		log:      logger.With().Str("component", "poller").Logger(),
	}
}

// Run ticks once immediately (so the cold-start snapshot happens right
// away), then on every interval until the context is cancelled. Cancelling
// the context also cancels an in-flight fetch.
func (p *Poller) Run(ctx context.Context) {
	p.runTick(ctx)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return
		case <-ticker.C:
			p.runTick(ctx)
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	metrics.PollTicks.Inc()
	alerts, err := p.fetch(ctx)
	if err != nil {
		metrics.FeedFetchErrors.Inc()
	}
	p.tick(alerts, err)
}
