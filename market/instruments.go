// market/instruments.go
package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Symbol is a spot instrument written as BASE/QUOTE, e.g. "ETH/USDT".
type Symbol string

// ParseSymbol validates s and returns it as a Symbol. Base and quote are
// upper-cased; surrounding whitespace is ignored.
func ParseSymbol(s string) (Symbol, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid symbol %q: want BASE/QUOTE", s)
	}
	return Symbol(strings.ToUpper(parts[0]) + "/" + strings.ToUpper(parts[1])), nil
}

// Base returns the traded asset, "ETH" for "ETH/USDT".
func (s Symbol) Base() string {
	base, _, _ := strings.Cut(string(s), "/")
	return base
}

// Quote returns the pricing asset, "USDT" for "ETH/USDT".
func (s Symbol) Quote() string {
	_, quote, _ := strings.Cut(string(s), "/")
	return quote
}

// Compact drops the separator, "ETHUSDT". Most exchange REST APIs want this form.
func (s Symbol) Compact() string {
	return s.Base() + s.Quote()
}

func (s Symbol) String() string { return string(s) }

// InstrumentMeta carries the trading constraints an exchange reports for a symbol.
type InstrumentMeta struct {
	Symbol      Symbol
	StepSize    float64 // lot size increment for quantities
	MinQuantity float64
	MinNotional float64
}

// Floor rounds quantity down to the step size and drops it to zero when the
// result is below MinQuantity.
func (m InstrumentMeta) Floor(quantity float64) float64 {
	q := FloorToStep(quantity, m.StepSize)
	if q < m.MinQuantity {
		return 0
	}
	return q
}

// FloorAt is Floor that also drops the quantity to zero when its value at
// price falls below MinNotional. A non-positive price skips the notional check.
func (m InstrumentMeta) FloorAt(quantity, price float64) float64 {
	q := m.Floor(quantity)
	if m.MinNotional > 0 && price > 0 && q*price < m.MinNotional {
		return 0
	}
	return q
}

// FloorToStep rounds quantity down to a multiple of step. A non-positive step
// leaves quantity unchanged.
func FloorToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	// The epsilon keeps values like 0.3/0.1 from flooring to 2.
	n := math.Floor(quantity/step + 1e-9)
	d := StepDecimals(step)
	v, _ := strconv.ParseFloat(strconv.FormatFloat(n*step, 'f', d, 64), 64)
	return v
}

// StepDecimals is the number of decimal places a step size allows,
// 4 for 0.0001 and 0 for 1.
func StepDecimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	_, frac, ok := strings.Cut(s, ".")
	if !ok {
		return 0
	}
	return len(frac)
}
