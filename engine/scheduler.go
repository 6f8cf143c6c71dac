package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives RunCycle: once immediately, then on every tick of a fixed
// interval. A tick that arrives while the previous cycle is still running is
// dropped instead of queued.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	log      *slog.Logger

	// OnCycle, when set, sees every cycle outcome. Tests use it to count runs.
	OnCycle func(CycleReport, error)
}

func NewScheduler(e *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   e,
		interval: interval,
		log:      e.log.With(slog.String("component", "scheduler")),
	}
}

// Run blocks until ctx is canceled, then waits for an in-flight cycle to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	// A started cycle runs to completion even if ctx is canceled, so no
	// order is left without its ledger update.
	cycleCtx := context.WithoutCancel(ctx)
	launch := func() {
		if ctx.Err() != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(cycleCtx)
		}()
	}

	s.log.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval))
	launch()

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "scheduler stopping")
			return nil
		case <-t.C:
			launch()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	rep, err := s.engine.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.log.WarnContext(ctx, "previous cycle still running, tick skipped")
	case err != nil:
		s.log.ErrorContext(ctx, "cycle failed", slog.String("error", err.Error()))
	}
	if s.OnCycle != nil {
		s.OnCycle(rep, err)
	}
}
