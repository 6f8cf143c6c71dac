// Package paper is an in-memory exchange for dry runs and tests. Prices follow
// a seeded random walk that advances one candle every time closes are read.
// Orders fill immediately at the last price and move balances.
package paper

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/internal/id"
	"github.com/rustyeddy/scalper/market"
)

// Config seeds the simulated venue.
type Config struct {
	// Balances are the starting free balances keyed by asset.
	Balances map[string]float64

	// Prices are the starting prices keyed by symbol.
	Prices map[market.Symbol]float64

	// StepSize is the quantity precision applied to every symbol.
	StepSize float64

	// Volatility is the per-candle standard deviation as a fraction of price.
	Volatility float64

	// History is the number of candles generated up front.
	History int

	Seed uint64
}

type Exchange struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	balances map[string]float64
	closes   map[market.Symbol][]float64
	fail     map[broker.Side]error
	now      func() time.Time
}

var _ broker.Exchange = (*Exchange)(nil)

func New(cfg Config) *Exchange {
	if cfg.History <= 0 {
		cfg.History = 50
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.002
	}

	e := &Exchange{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		balances: make(map[string]float64, len(cfg.Balances)),
		closes:   make(map[market.Symbol][]float64, len(cfg.Prices)),
		fail:     make(map[broker.Side]error),
		now:      time.Now,
	}
	for asset, v := range cfg.Balances {
		e.balances[asset] = v
	}
	// Sorted so a seed yields the same walks regardless of map order.
	for _, sym := range slices.Sorted(maps.Keys(cfg.Prices)) {
		p := cfg.Prices[sym]
		series := make([]float64, 0, cfg.History)
		series = append(series, p)
		for len(series) < cfg.History {
			series = append(series, e.step(series[len(series)-1]))
		}
		e.closes[sym] = series
	}
	return e
}

func (e *Exchange) step(last float64) float64 {
	next := last * (1 + e.rng.NormFloat64()*e.cfg.Volatility)
	if next <= 0 {
		return last
	}
	return next
}

// SetPrice appends a close for sym, replacing the random walk for that candle.
func (e *Exchange) SetPrice(sym market.Symbol, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes[sym] = append(e.closes[sym], price)
}

// FailOrders makes every subsequent order on side return err. A nil err
// clears the failure.
func (e *Exchange) FailOrders(side broker.Side, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.fail, side)
		return
	}
	e.fail[side] = err
}

// Balances returns a copy of all balances.
func (e *Exchange) Balances() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.balances))
	for k, v := range e.balances {
		out[k] = v
	}
	return out
}

func (e *Exchange) RecentCloses(ctx context.Context, sym market.Symbol, timeframe string, count int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	series, ok := e.closes[sym]
	if !ok {
		return nil, fmt.Errorf("paper: unknown symbol %s", sym)
	}
	series = append(series, e.step(series[len(series)-1]))
	e.closes[sym] = series

	if count > len(series) {
		count = len(series)
	}
	out := make([]float64, count)
	copy(out, series[len(series)-count:])
	return out, nil
}

func (e *Exchange) LastPrice(ctx context.Context, sym market.Symbol) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastLocked(sym)
}

func (e *Exchange) lastLocked(sym market.Symbol) (float64, error) {
	series := e.closes[sym]
	if len(series) == 0 {
		return 0, fmt.Errorf("paper: %s: %w", sym, broker.ErrPriceUnavailable)
	}
	return series[len(series)-1], nil
}

func (e *Exchange) FreeBalance(ctx context.Context, asset string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[asset], nil
}

func (e *Exchange) RoundQuantity(ctx context.Context, sym market.Symbol, quantity float64) (float64, error) {
	return market.FloorToStep(quantity, e.cfg.StepSize), nil
}

func (e *Exchange) MarketBuy(ctx context.Context, sym market.Symbol, quantity float64) (broker.Fill, error) {
	return e.order(ctx, sym, broker.Buy, quantity)
}

func (e *Exchange) MarketSell(ctx context.Context, sym market.Symbol, quantity float64) (broker.Fill, error) {
	return e.order(ctx, sym, broker.Sell, quantity)
}

func (e *Exchange) order(ctx context.Context, sym market.Symbol, side broker.Side, quantity float64) (broker.Fill, error) {
	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if quantity <= 0 {
		return broker.Fill{}, fmt.Errorf("paper: %s %s: quantity must be > 0", side, sym)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.fail[side]; err != nil {
		return broker.Fill{}, err
	}

	price, err := e.lastLocked(sym)
	if err != nil {
		return broker.Fill{}, err
	}

	base, quote := sym.Base(), sym.Quote()
	notional := price * quantity

	switch side {
	case broker.Buy:
		if e.balances[quote] < notional {
			return broker.Fill{}, fmt.Errorf("paper: buy %s needs %.8f %s: %w", sym, notional, quote, broker.ErrInsufficientBalance)
		}
		e.balances[quote] -= notional
		e.balances[base] += quantity
	case broker.Sell:
		if e.balances[base] < quantity {
			return broker.Fill{}, fmt.Errorf("paper: sell %.8f %s: %w", quantity, base, broker.ErrInsufficientBalance)
		}
		e.balances[base] -= quantity
		e.balances[quote] += notional
	}

	return broker.Fill{
		OrderID:   id.New(e.now()),
		Symbol:    sym,
		Side:      side,
		Requested: quantity,
		Filled:    quantity,
		AvgPrice:  price,
	}, nil
}
