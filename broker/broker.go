// Package broker defines what the engine needs from an exchange: market data
// reads, market orders, and free balances. Precision rounding, signing and
// rate limiting stay behind these interfaces.
package broker

import (
	"context"
	"errors"

	"github.com/rustyeddy/scalper/market"
)

var (
	// ErrPriceUnavailable means the exchange had no usable last price.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrInsufficientBalance is returned when an order cannot be covered.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// MarketData reads prices.
type MarketData interface {
	// RecentCloses returns up to count closing prices for sym, oldest first.
	RecentCloses(ctx context.Context, sym market.Symbol, timeframe string, count int) ([]float64, error)

	// LastPrice returns the latest traded price or ErrPriceUnavailable.
	LastPrice(ctx context.Context, sym market.Symbol) (float64, error)
}

// Gateway submits market orders and reads balances.
type Gateway interface {
	MarketBuy(ctx context.Context, sym market.Symbol, quantity float64) (Fill, error)
	MarketSell(ctx context.Context, sym market.Symbol, quantity float64) (Fill, error)

	// FreeBalance is the unlocked amount of asset, zero if none is held.
	FreeBalance(ctx context.Context, asset string) (float64, error)

	// RoundQuantity rounds quantity down to the symbol's tradable precision.
	RoundQuantity(ctx context.Context, sym market.Symbol, quantity float64) (float64, error)
}

// Exchange is a full venue.
type Exchange interface {
	MarketData
	Gateway
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Fill is the exchange's report for a submitted market order. Filled and
// AvgPrice are zero when the venue did not report them.
type Fill struct {
	OrderID   string
	Symbol    market.Symbol
	Side      Side
	Requested float64
	Filled    float64
	AvgPrice  float64
}

// FilledQuantity is the reported fill, falling back to the requested quantity.
func (f Fill) FilledQuantity() float64 {
	if f.Filled > 0 {
		return f.Filled
	}
	return f.Requested
}

// PriceOr is the reported average fill price, falling back to fallback.
func (f Fill) PriceOr(fallback float64) float64 {
	if f.AvgPrice > 0 {
		return f.AvgPrice
	}
	return fallback
}
