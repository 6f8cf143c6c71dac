package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/internal/id"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/ledger"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/signals"
)

// Evaluation is what one instrument's price history says this cycle.
type Evaluation struct {
	Price   float64
	Current signals.Reading
	Prior   signals.Reading
	Signal  signals.Signal
}

// Evaluate computes the oscillator on closes and on closes without the
// latest sample, and classifies the transition between the two. The price is
// the latest close; an empty series yields a zero price.
func (e *Engine) Evaluate(closes []float64) Evaluation {
	var ev Evaluation
	if len(closes) == 0 {
		return ev
	}
	ev.Price = closes[len(closes)-1]
	ev.Current = reading(closes, e.cfg.Period)
	ev.Prior = reading(closes[:len(closes)-1], e.cfg.Period)
	ev.Signal = e.cfg.Thresholds.Detect(ev.Prior, ev.Current)
	return ev
}

func reading(closes []float64, period int) signals.Reading {
	v, ok := indicators.RSI(closes, period)
	if !ok {
		return signals.Unavailable
	}
	return signals.At(v)
}

type pendingClose struct {
	pos    ledger.Position
	reason risk.ExitReason
}

// ProcessInstrument runs one lifecycle step for sym: exits first, then a
// possible entry funded from freeQuote. It reports whether any order filled.
// Order failures are logged and leave the ledger untouched; only a failure to
// read market data is returned.
func (e *Engine) ProcessInstrument(ctx context.Context, sym market.Symbol, freeQuote float64) (bool, error) {
	var transacted bool
	err := e.exclusive(ctx, "process "+string(sym), func(ctx context.Context) error {
		var err error
		transacted, err = e.processInstrument(ctx, sym, freeQuote)
		return err
	})
	return transacted, err
}

func (e *Engine) processInstrument(ctx context.Context, sym market.Symbol, freeQuote float64) (bool, error) {
	closes, err := e.market.RecentCloses(ctx, sym, e.cfg.Timeframe, e.cfg.Period+2)
	if err != nil {
		return false, fmt.Errorf("recent closes %s: %w", sym, err)
	}
	ev := e.Evaluate(closes)
	if ev.Price <= 0 {
		e.log.DebugContext(ctx, "no price, skipping", slog.String("instrument", string(sym)))
		return false, nil
	}

	log := e.log.With(slog.String("instrument", string(sym)))
	log.DebugContext(ctx, "evaluated",
		slog.Float64("price", ev.Price),
		slog.Float64("rsi", ev.Current.Value),
		slog.Bool("rsi_available", ev.Current.Available),
		slog.String("signal", ev.Signal.String()))

	dirty := false
	transacted := false

	// Decide every close against the same snapshot before any order goes out.
	st := e.state.Instrument(sym)
	var pending []pendingClose
	now := e.now()
	for _, p := range st.OpenPositions {
		reason := e.cfg.Policy.Exit(p.EntryPrice, ev.Price, ev.Signal == signals.Exit)
		if reason == risk.NoExit {
			continue
		}
		if !e.retries.ready(p.ID, now) {
			log.DebugContext(ctx, "close deferred after earlier failure",
				slog.String("position", p.ID), slog.String("reason", string(reason)))
			continue
		}
		pending = append(pending, pendingClose{pos: p, reason: reason})
	}

	if len(pending) > 0 {
		log.InfoContext(ctx, "closing positions", slog.Int("count", len(pending)))
		for _, pc := range pending {
			if e.closePosition(ctx, log, sym, pc, ev.Price) {
				dirty = true
				transacted = true
			}
		}
		e.settle(ctx)
	}

	if ev.Signal == signals.Entry {
		if e.openPosition(ctx, log, sym, ev, freeQuote) {
			dirty = true
			transacted = true
			e.settle(ctx)
		}
	}

	e.retries.forget(e.openIDs())

	if dirty {
		e.persist(ctx)
	}
	e.observePositions(sym)
	return transacted, nil
}

// closePosition sells one position and books the result. It returns true
// when the ledger changed.
func (e *Engine) closePosition(ctx context.Context, log *slog.Logger, sym market.Symbol, pc pendingClose, price float64) bool {
	p := pc.pos
	log = log.With(slog.String("position", p.ID), slog.String("reason", string(pc.reason)))

	qty, err := e.gateway.RoundQuantity(ctx, sym, p.Quantity)
	if err == nil && qty <= 0 {
		err = fmt.Errorf("quantity %v rounds to zero", p.Quantity)
	}
	if err != nil {
		next := e.retries.failed(p.ID, e.now())
		log.WarnContext(ctx, "close skipped", slog.String("error", err.Error()), slog.Time("retry_at", next))
		return false
	}

	fill, err := e.gateway.MarketSell(ctx, sym, qty)
	e.metrics.Order(string(broker.Sell), err)
	if err != nil {
		next := e.retries.failed(p.ID, e.now())
		log.WarnContext(ctx, "sell failed, position stays open",
			slog.String("error", err.Error()), slog.Time("retry_at", next))
		return false
	}
	e.retries.succeeded(p.ID)

	exitPrice := fill.PriceOr(price)
	filled := fill.FilledQuantity()
	_, profit, err := e.state.Close(sym, p.ID, exitPrice, filled)
	if err != nil {
		// The sell went through but the position vanished; nothing to book.
		log.ErrorContext(ctx, "ledger close failed after sell", slog.String("error", err.Error()))
		return false
	}

	closedAt := e.now()
	e.metrics.Closed(string(pc.reason))
	log.InfoContext(ctx, "position closed",
		slog.Float64("entry", p.EntryPrice),
		slog.Float64("exit", exitPrice),
		slog.Float64("quantity", filled),
		slog.Float64("profit", profit))

	rec := journal.TradeRecord{
		TradeID:    p.ID,
		Instrument: string(sym),
		Quantity:   filled,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		OpenTime:   p.OpenedAt,
		CloseTime:  closedAt,
		RealizedPL: profit,
		Reason:     string(pc.reason),
		Origin:     string(p.Origin),
	}
	if err := e.journal.RecordTrade(rec); err != nil {
		log.WarnContext(ctx, "journal write failed", slog.String("error", err.Error()))
	}
	return true
}

// openPosition applies the capital gate and buys TradeCapital worth of sym.
// It returns true when a position was added.
func (e *Engine) openPosition(ctx context.Context, log *slog.Logger, sym market.Symbol, ev Evaluation, freeQuote float64) bool {
	if d := risk.CheckEntry(e.cfg.Policy, freeQuote); !d.Allowed {
		log.InfoContext(ctx, "entry signal blocked", slog.String("reason", d.Reason()))
		return false
	}

	qty, err := e.gateway.RoundQuantity(ctx, sym, e.cfg.Policy.EntryQuantity(ev.Price))
	if err != nil {
		log.WarnContext(ctx, "entry skipped", slog.String("error", err.Error()))
		return false
	}
	if qty <= 0 {
		log.WarnContext(ctx, "entry skipped, quantity below lot size",
			slog.Float64("capital", e.cfg.Policy.TradeCapital), slog.Float64("price", ev.Price))
		return false
	}

	log.InfoContext(ctx, "entry signal",
		slog.Float64("rsi", ev.Current.Value), slog.Float64("quantity", qty))

	fill, err := e.gateway.MarketBuy(ctx, sym, qty)
	e.metrics.Order(string(broker.Buy), err)
	if err != nil {
		log.WarnContext(ctx, "buy failed, no position opened", slog.String("error", err.Error()))
		return false
	}

	openedAt := e.now()
	pos := ledger.Position{
		ID:         id.New(openedAt),
		EntryPrice: fill.PriceOr(ev.Price),
		Quantity:   fill.FilledQuantity(),
		OpenedAt:   openedAt,
		Origin:     ledger.OriginSignal,
	}
	if err := e.state.Open(sym, pos); err != nil {
		log.ErrorContext(ctx, "ledger open failed after buy", slog.String("error", err.Error()))
		return false
	}

	log.InfoContext(ctx, "position opened",
		slog.String("position", pos.ID),
		slog.Float64("entry", pos.EntryPrice),
		slog.Float64("quantity", pos.Quantity))
	return true
}

// openIDs collects the ids of open positions across every instrument.
func (e *Engine) openIDs() map[string]struct{} {
	open := make(map[string]struct{})
	for _, st := range e.state.Instruments {
		for _, p := range st.OpenPositions {
			open[p.ID] = struct{}{}
		}
	}
	return open
}
