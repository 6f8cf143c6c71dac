package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLiquidation(t *testing.T, h *harness) {
	t.Helper()
	h.open(t, eth, "e1", 2000, 0.1)
	h.open(t, eth, "e2", 2100, 0.2)
	h.open(t, btc, "b1", 60000, 0.01)
	// No longer configured, still held.
	h.open(t, sol, "s1", 150, 2)
	h.state.Instruments[eth].RealizedProfit = 3
	h.state.GlobalRealizedProfit = 5

	h.ex.balances["ETH"] = 0.3
	h.ex.balances["BTC"] = 0.01
	h.ex.balances["SOL"] = 2
}

func TestLiquidateSellsEverything(t *testing.T) {
	h := newHarness(t)
	seedLiquidation(t, h)

	results, err := h.engine.Liquidate(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, btc, results[0].Instrument)
	assert.Equal(t, eth, results[1].Instrument)
	assert.Equal(t, sol, results[2].Instrument)
	assert.Equal(t, 2, results[1].Cleared)
	assert.Equal(t, 0.3, results[1].Sold)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	assert.Zero(t, h.state.OpenCount())
	assert.Equal(t, 5.0, h.state.GlobalRealizedProfit)
	assert.Equal(t, 3.0, h.state.Instruments[eth].RealizedProfit)

	sells := h.ex.sells()
	require.Len(t, sells, 3)
	assert.Equal(t, 0.01, sells[0].Quantity)
	assert.Equal(t, 0.3, sells[1].Quantity)
	assert.Equal(t, 2.0, sells[2].Quantity)

	assert.Equal(t, 1, h.store.count())
	assert.Equal(t, 3, h.sleeps())
	assert.Empty(t, h.journal.trades)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Liquidations))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.ClosesTotal.WithLabelValues("LIQUIDATION")))
}

func TestLiquidateIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	seedLiquidation(t, h)
	h.ex.sellErr[eth] = errors.New("market closed")

	results, err := h.engine.Liquidate(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	assert.Len(t, h.state.Instruments[eth].OpenPositions, 2)
	assert.Empty(t, h.state.Instruments[btc].OpenPositions)
	assert.Empty(t, h.state.Instruments[sol].OpenPositions)
	assert.Equal(t, 1, h.store.count())
}

func TestLiquidateKeepsPositionsWithoutBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
	}{
		{"empty", 0},
		{"below lot size", 0.00001},
		{"dust", 0.0001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.open(t, eth, "e1", 2000, 0.1)
			h.ex.balances["ETH"] = tt.balance

			results, err := h.engine.Liquidate(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.NoError(t, results[0].Err)
			assert.Zero(t, results[0].Cleared)
			assert.Len(t, h.state.Instruments[eth].OpenPositions, 1)
			assert.Empty(t, h.ex.sells())
		})
	}
}

func TestLiquidateNothingOpen(t *testing.T) {
	h := newHarness(t)

	results, err := h.engine.Liquidate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, h.store.count())
}
