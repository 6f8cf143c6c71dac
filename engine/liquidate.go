package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
)

// LiquidationResult is the outcome for one instrument.
type LiquidationResult struct {
	Instrument market.Symbol
	Sold       float64
	Cleared    int
	Err        error
}

// Liquidate sells the whole free base balance of every instrument that has
// open positions and clears those positions. It works from observed balances
// rather than position records, so realized profit is not touched. A failure
// on one instrument is recorded and the rest still run; the ledger is saved
// once at the end.
func (e *Engine) Liquidate(ctx context.Context) ([]LiquidationResult, error) {
	var results []LiquidationResult
	err := e.exclusive(ctx, "liquidate", func(ctx context.Context) error {
		e.log.WarnContext(ctx, "emergency liquidation started")
		e.metrics.Liquidated()

		// Every instrument in the ledger, not only the configured ones, so
		// holdings from an older configuration are not stranded.
		syms := make([]market.Symbol, 0, len(e.state.Instruments))
		for sym, st := range e.state.Instruments {
			if st.HasOpen() {
				syms = append(syms, sym)
			}
		}
		slices.Sort(syms)

		for _, sym := range syms {
			res := e.liquidateInstrument(ctx, sym)
			if res.Err != nil {
				e.log.ErrorContext(ctx, "liquidation failed",
					slog.String("instrument", string(sym)), slog.String("error", res.Err.Error()))
			}
			e.observePositions(sym)
			results = append(results, res)
		}

		e.persist(ctx)
		e.log.WarnContext(ctx, "emergency liquidation finished", slog.Int("instruments", len(results)))
		return nil
	})
	return results, err
}

func (e *Engine) liquidateInstrument(ctx context.Context, sym market.Symbol) LiquidationResult {
	res := LiquidationResult{Instrument: sym}
	log := e.log.With(slog.String("instrument", string(sym)))

	balance, err := e.gateway.FreeBalance(ctx, sym.Base())
	if err != nil {
		res.Err = fmt.Errorf("free balance %s: %w", sym.Base(), err)
		return res
	}
	if balance <= e.cfg.DustThreshold {
		log.WarnContext(ctx, "no balance to sell, positions kept", slog.Float64("balance", balance))
		return res
	}

	qty, err := e.gateway.RoundQuantity(ctx, sym, balance)
	if err != nil {
		res.Err = fmt.Errorf("round quantity: %w", err)
		return res
	}
	if qty <= 0 {
		log.WarnContext(ctx, "balance rounds to zero, positions kept", slog.Float64("balance", balance))
		return res
	}

	fill, err := e.gateway.MarketSell(ctx, sym, qty)
	e.metrics.Order(string(broker.Sell), err)
	if err != nil {
		res.Err = fmt.Errorf("sell %v: %w", qty, err)
		return res
	}

	cleared := e.state.Clear(sym)
	res.Sold = fill.FilledQuantity()
	res.Cleared = len(cleared)
	for _, p := range cleared {
		e.metrics.Closed(string(risk.Liquidation))
		e.retries.succeeded(p.ID)
	}
	log.WarnContext(ctx, "liquidated",
		slog.Float64("sold", res.Sold), slog.Int("positions_cleared", res.Cleared))

	e.settle(ctx)
	return res
}
