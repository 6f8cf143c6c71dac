package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/scalper/internal/id"
	"github.com/rustyeddy/scalper/ledger"
	"github.com/rustyeddy/scalper/market"
)

// Reconcile adopts untracked exchange holdings. For each configured
// instrument with no open positions, a base balance above the dust threshold
// becomes one RECONCILED position entered at the current price. Instruments
// that already have positions are left alone, since the ledger is trusted
// over the raw balance. The ledger is saved afterwards. It returns the
// number of positions adopted.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	var adopted int
	err := e.exclusive(ctx, "reconcile", func(ctx context.Context) error {
		for _, sym := range e.cfg.Instruments {
			ok, err := e.reconcileInstrument(ctx, sym)
			if err != nil {
				e.log.WarnContext(ctx, "reconcile skipped",
					slog.String("instrument", string(sym)), slog.String("error", err.Error()))
				continue
			}
			if ok {
				adopted++
			}
			e.observePositions(sym)
		}
		e.persist(ctx)
		return nil
	})
	return adopted, err
}

func (e *Engine) reconcileInstrument(ctx context.Context, sym market.Symbol) (bool, error) {
	st := e.state.Instrument(sym)
	if st.HasOpen() {
		return false, nil
	}

	// Both reads are side-effect free, so they can overlap.
	var balance, price float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := e.gateway.FreeBalance(gctx, sym.Base())
		if err != nil {
			return fmt.Errorf("free balance %s: %w", sym.Base(), err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		// A missing ticker only means nothing can be adopted this time.
		p, err := e.market.LastPrice(gctx, sym)
		if err != nil {
			e.log.DebugContext(ctx, "ticker unavailable",
				slog.String("instrument", string(sym)), slog.String("error", err.Error()))
			return nil
		}
		price = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if balance <= e.cfg.DustThreshold || price <= 0 {
		return false, nil
	}

	openedAt := e.now()
	pos := ledger.Position{
		ID:         id.New(openedAt),
		EntryPrice: price,
		Quantity:   balance,
		OpenedAt:   openedAt,
		Origin:     ledger.OriginReconciled,
	}
	if err := e.state.Open(sym, pos); err != nil {
		return false, err
	}

	e.log.WarnContext(ctx, "adopted untracked balance",
		slog.String("instrument", string(sym)),
		slog.String("position", pos.ID),
		slog.Float64("quantity", balance),
		slog.Float64("entry", price))
	return true, nil
}
