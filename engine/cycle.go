package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/risk"
)

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	FreeQuote    float64
	Processed    int
	Skipped      int
	Failed       int
	Transacted   int
	OpenCount    int
	GlobalProfit float64
}

// RunCycle reads the free quote balance and processes every configured
// instrument in order. A failure on one instrument is logged and the cycle
// moves on; only a failed balance read or an overlapping run aborts the
// cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	start := e.now()
	var rep CycleReport
	err := e.exclusive(ctx, "cycle", func(ctx context.Context) error {
		var err error
		rep, err = e.runCycle(ctx)
		return err
	})

	result := "ok"
	switch {
	case errors.Is(err, ErrCycleInProgress):
		result = "busy"
	case err != nil:
		result = "error"
	}
	e.metrics.Cycle(result, e.now().Sub(start))
	return rep, err
}

func (e *Engine) runCycle(ctx context.Context) (CycleReport, error) {
	var rep CycleReport

	free, err := e.gateway.FreeBalance(ctx, e.cfg.Quote)
	if err != nil {
		e.log.ErrorContext(ctx, "quote balance unavailable, cycle aborted",
			slog.String("asset", e.cfg.Quote), slog.String("error", err.Error()))
		return rep, fmt.Errorf("free balance %s: %w", e.cfg.Quote, err)
	}
	e.metrics.Balance(free)
	e.log.InfoContext(ctx, "cycle start",
		slog.Int("instruments", len(e.cfg.Instruments)),
		slog.Float64("free_quote", free),
		slog.Float64("trade_capital", e.cfg.Policy.TradeCapital))

	for _, sym := range e.cfg.Instruments {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		st := e.state.Instrument(sym)
		if risk.ShouldSkip(e.cfg.Policy, len(st.OpenPositions), free) {
			rep.Skipped++
			continue
		}

		transacted, err := e.processInstrument(ctx, sym, free)
		if err != nil {
			rep.Failed++
			e.metrics.InstrumentError(string(sym))
			e.log.ErrorContext(ctx, "instrument cycle failed",
				slog.String("instrument", string(sym)), slog.String("error", err.Error()))
			continue
		}
		rep.Processed++
		if !transacted {
			continue
		}

		rep.Transacted++
		refreshed, err := e.gateway.FreeBalance(ctx, e.cfg.Quote)
		if err != nil {
			e.log.WarnContext(ctx, "quote balance refresh failed, keeping last value",
				slog.String("error", err.Error()))
			continue
		}
		free = refreshed
		e.metrics.Balance(free)
		e.recordBalance(ctx, free)
	}

	rep.FreeQuote = free
	rep.OpenCount = e.state.OpenCount()
	rep.GlobalProfit = e.state.GlobalRealizedProfit
	e.log.InfoContext(ctx, "cycle done",
		slog.Int("processed", rep.Processed),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Int("open_positions", rep.OpenCount),
		slog.Float64("global_realized_profit", rep.GlobalProfit))
	return rep, nil
}

func (e *Engine) recordBalance(ctx context.Context, free float64) {
	err := e.journal.RecordBalance(journal.BalanceSnapshot{
		Time:           e.now(),
		Asset:          e.cfg.Quote,
		Free:           free,
		GlobalRealized: e.state.GlobalRealizedProfit,
	})
	if err != nil {
		e.log.WarnContext(ctx, "journal write failed", slog.String("error", err.Error()))
	}
}
