package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var policy = Policy{StopLossPct: 0.03, TakeProfitPct: 0.05, TradeCapital: 10}

func TestExitPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		price         float64
		indicatorExit bool
		want          ExitReason
	}{
		{"stop loss at threshold", 97.0, false, StopLoss},
		{"stop loss below threshold", 90, false, StopLoss},
		{"take profit at threshold", 105.0, false, TakeProfit},
		{"take profit above threshold", 120, false, TakeProfit},
		{"inside band no signal", 101, false, NoExit},
		{"inside band with signal", 101, true, IndicatorExit},
		{"stop loss beats indicator", 96, true, StopLoss},
		{"take profit beats indicator", 106, true, TakeProfit},
		{"just above stop", 97.01, false, NoExit},
		{"just below take profit", 104.99, false, NoExit},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.Exit(100, tt.price, tt.indicatorExit))
		})
	}
}

func TestTriggerPrices(t *testing.T) {
	assert.InDelta(t, 97.0, policy.StopLossPrice(100), 1e-12)
	assert.InDelta(t, 105.0, policy.TakeProfitPrice(100), 1e-12)
}

func TestEntryQuantity(t *testing.T) {
	assert.InDelta(t, 0.1, policy.EntryQuantity(100), 1e-12)
	assert.Equal(t, 0.0, policy.EntryQuantity(0))
}

func TestCheckEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		free    float64
		allowed bool
	}{
		{"plenty", 1000, true},
		{"exact", 10, true},
		{"short", 9.99, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := CheckEntry(policy, tt.free)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Violations)
				assert.Empty(t, d.Reason())
			} else {
				assert.Len(t, d.Violations, 1)
				assert.Equal(t, "INSUFFICIENT_CAPITAL", d.Violations[0].Code)
				assert.Contains(t, d.Reason(), "below trade capital")
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, ShouldSkip(policy, 0, 5))
	assert.False(t, ShouldSkip(policy, 1, 5), "open positions still need managing")
	assert.False(t, ShouldSkip(policy, 0, 50))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, policy.Validate())
	assert.Error(t, Policy{StopLossPct: 0, TakeProfitPct: 0.05, TradeCapital: 10}.Validate())
	assert.Error(t, Policy{StopLossPct: 1, TakeProfitPct: 0.05, TradeCapital: 10}.Validate())
	assert.Error(t, Policy{StopLossPct: 0.03, TakeProfitPct: 0, TradeCapital: 10}.Validate())
	assert.Error(t, Policy{StopLossPct: 0.03, TakeProfitPct: 0.05, TradeCapital: 0}.Validate())
}
