package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/ledger"
)

func TestReconcileAdoptsUntrackedBalance(t *testing.T) {
	h := newHarness(t)
	h.ex.balances["ETH"] = 0.5
	h.ex.prices[eth] = 2000
	h.ex.prices[btc] = 60000

	n, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := h.state.Instruments[eth]
	require.Len(t, st.OpenPositions, 1)
	p := st.OpenPositions[0]
	assert.Equal(t, ledger.OriginReconciled, p.Origin)
	assert.Equal(t, 2000.0, p.EntryPrice)
	assert.Equal(t, 0.5, p.Quantity)
	assert.Zero(t, st.RealizedProfit)

	assert.Empty(t, h.state.Instrument(btc).OpenPositions)
	assert.Equal(t, 1, h.store.count())
	assert.Empty(t, h.ex.orders)
}

func TestReconcileLeavesInstrument(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
	}{
		{"positions already tracked", func(t *testing.T, h *harness) {
			h.open(t, eth, "p1", 1900, 0.1)
		}},
		{"balance at dust", func(t *testing.T, h *harness) {
			h.ex.balances["ETH"] = 0.0001
		}},
		{"ticker unavailable", func(t *testing.T, h *harness) {
			h.ex.priceErr = errors.New("ticker timeout")
		}},
		{"balance unavailable", func(t *testing.T, h *harness) {
			h.ex.balanceErr["ETH"] = errors.New("account timeout")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ex.balances["ETH"] = 0.5
			h.ex.prices[eth] = 2000
			tt.setup(t, h)
			before := len(h.state.Instrument(eth).OpenPositions)

			n, err := h.engine.Reconcile(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Len(t, h.state.Instrument(eth).OpenPositions, before)
			assert.Equal(t, 1, h.store.count(), "the ledger is saved even when nothing changed")
		})
	}
}

func TestReconcileTrackedInstrumentIgnoresBalance(t *testing.T) {
	h := newHarness(t)
	h.open(t, eth, "p1", 1900, 0.1)
	h.ex.balances["ETH"] = 5

	_, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.ex.balanceCalls["ETH"])
	assert.Equal(t, 0.1, h.state.Instruments[eth].OpenPositions[0].Quantity)
}

func TestReconcileContinuesPastFailure(t *testing.T) {
	h := newHarness(t)
	h.ex.balanceErr["ETH"] = errors.New("account timeout")
	h.ex.balances["BTC"] = 0.02
	h.ex.prices[btc] = 60000

	n, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, h.state.Instrument(btc).OpenPositions, 1)
}
