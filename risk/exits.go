package risk

// ExitReason says why a position is being closed. The empty reason means the
// position stays open.
type ExitReason string

const (
	NoExit        ExitReason = ""
	StopLoss      ExitReason = "STOP_LOSS"
	TakeProfit    ExitReason = "TAKE_PROFIT"
	IndicatorExit ExitReason = "RSI_EXIT"
	Liquidation   ExitReason = "LIQUIDATION"
)

// Exit evaluates the close rules for a long entered at entry, in fixed
// priority: stop-loss, then take-profit, then the indicator exit signal,
// which applies to every open position regardless of its entry price.
func (p Policy) Exit(entry, price float64, indicatorExit bool) ExitReason {
	switch {
	case price <= p.StopLossPrice(entry):
		return StopLoss
	case price >= p.TakeProfitPrice(entry):
		return TakeProfit
	case indicatorExit:
		return IndicatorExit
	default:
		return NoExit
	}
}
