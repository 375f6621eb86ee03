package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// CycleFunc is one unattended reconciliation cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler repeats a cycle until its context is cancelled. Cycles never
// overlap.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	clock    clock.Clock
}

type Option func(*Scheduler)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func New(interval time.Duration, cycle CycleFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		cycle:    cycle,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done and returns its error. Cycle errors are
// logged and the loop continues.
//
// With a zero interval cycles run back to back with no pause, which keeps a
// CPU core and the provider API busy. Otherwise the first cycle runs
// immediately and later cycles start on a fixed-period tick; a tick that
// fires while a cycle is still running is dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Watching inventory", "interval", s.interval)

	if s.interval <= 0 {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.runCycle(ctx)
		}
	}

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runCycle(ctx)

		// Drop a tick that fired during the cycle
		select {
		case <-ticker.C:
			slog.Debug("Cycle overran the interval, skipping missed tick")
		default:
		}

		slog.Debug("Sleeping until next tick")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			slog.Debug("Awoken")
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.clock.Now()
	if err := s.cycle(ctx); err != nil {
		slog.Error("Watch cycle failed", "error", err)
		return
	}
	slog.Debug("Watch cycle finished", "duration", s.clock.Since(start))
}
