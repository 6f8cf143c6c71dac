package risk

import "fmt"

// Policy holds the fixed risk limits applied to every position.
type Policy struct {
	StopLossPct   float64 // 0.03 closes at entry * (1 - 0.03)
	TakeProfitPct float64 // 0.05 closes at entry * (1 + 0.05)

	// TradeCapital is the quote-currency amount spent on each new entry.
	TradeCapital float64
}

// Validate rejects limits that would make the exit rules meaningless.
func (p Policy) Validate() error {
	if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("stop loss pct %v must be in (0,1)", p.StopLossPct)
	}
	if p.TakeProfitPct <= 0 {
		return fmt.Errorf("take profit pct %v must be positive", p.TakeProfitPct)
	}
	if p.TradeCapital <= 0 {
		return fmt.Errorf("trade capital %v must be positive", p.TradeCapital)
	}
	return nil
}

// StopLossPrice is the price at or below which a long entered at entry is stopped out.
func (p Policy) StopLossPrice(entry float64) float64 {
	return entry * (1 - p.StopLossPct)
}

// TakeProfitPrice is the price at or above which a long entered at entry takes profit.
func (p Policy) TakeProfitPrice(entry float64) float64 {
	return entry * (1 + p.TakeProfitPct)
}

// EntryQuantity is the base quantity bought with TradeCapital at price.
func (p Policy) EntryQuantity(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return p.TradeCapital / price
}
