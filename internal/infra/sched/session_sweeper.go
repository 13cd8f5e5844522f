package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/infra/metrics"
)

// Sweeper drops expired entries and reports how many went away.
type Sweeper interface {
	Sweep() int
}

// SessionSweeper periodically evicts expired broadcast sessions from an
// in-process store. Redis-backed sessions expire on their own.
type SessionSweeper struct {
	interval time.Duration
	store    Sweeper
	log      *zerolog.Logger
}

func NewSessionSweeper(interval time.Duration, store Sweeper, logger *zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{interval: interval, store: store, log: &l}
}

// Run blocks until ctx is cancelled.
func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping session sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *SessionSweeper) sweep() int {
	n := w.store.Sweep()
	if n > 0 {
		metrics.AddBroadcastSessionsSwept(n)
		w.log.Debug().Int("count", n).Msg("expired broadcast sessions dropped")
	}
	return n
}
