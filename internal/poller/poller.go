package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc is invoked on every polling cycle.
type CycleFunc func(ctx context.Context, cycle time.Time) error

// Options tune poller behaviour.
type Options struct {
	Interval     time.Duration
	AlignCycles  bool
	StartupDelay time.Duration
}

// Poller drives the poll-based ingestion source at a fixed cadence. Cycle
// failures are logged and never stop the loop; the limiter underneath
// already absorbed any quota waits.
type Poller struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Poller instance.
func New(opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		panic("poller interval must be positive")
	}
	return &Poller{opts: opts, logger: logger.With().Str("component", "poller").Logger()}
}

// Run blocks, invoking the cycle function at each interval until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context, fn CycleFunc) error {
	if p.opts.StartupDelay > 0 {
		timer := time.NewTimer(p.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := p.nextCycle(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = p.nextCycle(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		p.logger.Debug().Time("next_cycle", next).Msg("waiting for next poll cycle")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		cycle := next
		p.logger.Info().Time("cycle", cycle).Msg("executing poll cycle")

		if err := fn(ctx, cycle); err != nil {
			p.logger.Error().Err(err).Time("cycle", cycle).Msg("poll cycle failed")
		}

		next = next.Add(p.opts.Interval)
	}
}

func (p *Poller) nextCycle(now time.Time) time.Time {
	if !p.opts.AlignCycles {
		return now.Add(p.opts.Interval)
	}
	cycle := now.Truncate(p.opts.Interval)
	if !cycle.After(now) {
		cycle = cycle.Add(p.opts.Interval)
	}
	return cycle
}
