package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rustyeddy/scalper/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eth = market.Symbol("ETH/USDT")

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func pos(id string, entry, qty float64) Position {
	return Position{ID: id, EntryPrice: entry, Quantity: qty, OpenedAt: t0, Origin: OriginSignal}
}

func TestNewIsEmpty(t *testing.T) {
	g := New()
	assert.Equal(t, 0.0, g.GlobalRealizedProfit)
	assert.Empty(t, g.Instruments)
	assert.Equal(t, 0, g.OpenCount())
}

func TestInstrumentIsLazyAndStable(t *testing.T) {
	g := New()
	s := g.Instrument(eth)
	require.NotNil(t, s)
	assert.Equal(t, eth, s.Instrument)
	assert.False(t, s.HasOpen())
	assert.Same(t, s, g.Instrument(eth))
	assert.Len(t, g.Instruments, 1)
}

func TestOpenValidates(t *testing.T) {
	g := New()
	assert.Error(t, g.Open(eth, pos("a", 100, 0)))
	assert.Error(t, g.Open(eth, pos("a", 100, -1)))
	assert.Error(t, g.Open(eth, pos("", 100, 1)))

	require.NoError(t, g.Open(eth, pos("a", 100, 1)))
	assert.Error(t, g.Open(eth, pos("a", 101, 1)), "duplicate id")
	assert.Equal(t, 1, g.OpenCount())
}

func TestCloseBooksProfitOnBothLevels(t *testing.T) {
	g := New()
	require.NoError(t, g.Open(eth, pos("a", 100, 2)))
	require.NoError(t, g.Open(eth, pos("b", 110, 1)))
	require.NoError(t, g.Open(market.Symbol("BTC/USDT"), pos("c", 50, 1)))

	closed, profit, err := g.Close(eth, "a", 105, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", closed.ID)
	assert.InDelta(t, 10.0, profit, 1e-12)
	assert.InDelta(t, 10.0, g.Instrument(eth).RealizedProfit, 1e-12)
	assert.InDelta(t, 10.0, g.GlobalRealizedProfit, 1e-12)

	_, ok := g.Instrument(eth).Find("a")
	assert.False(t, ok)
	_, ok = g.Instrument(eth).Find("b")
	assert.True(t, ok)

	_, profit, err = g.Close(eth, "b", 100, 1)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, profit, 1e-12)
	assert.InDelta(t, 0.0, g.Instrument(eth).RealizedProfit, 1e-12)
	assert.InDelta(t, 0.0, g.GlobalRealizedProfit, 1e-12)
	assert.Equal(t, 0.0, g.Instrument(market.Symbol("BTC/USDT")).RealizedProfit)
}

func TestCloseTwiceIsImpossible(t *testing.T) {
	g := New()
	require.NoError(t, g.Open(eth, pos("a", 100, 1)))

	_, _, err := g.Close(eth, "a", 101, 1)
	require.NoError(t, err)

	_, _, err = g.Close(eth, "a", 101, 1)
	assert.ErrorIs(t, err, ErrPositionNotFound)
	assert.InDelta(t, 1.0, g.GlobalRealizedProfit, 1e-12)

	_, _, err = g.Close(market.Symbol("XRP/USDT"), "a", 1, 1)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestCloseKeepsFIFOOrder(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, g.Open(eth, pos(id, 100, 1)))
	}
	before := g.Instrument(eth).OpenPositions

	_, _, err := g.Close(eth, "b", 100, 1)
	require.NoError(t, err)

	var ids []string
	for _, p := range g.Instrument(eth).OpenPositions {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
	assert.Equal(t, "b", before[1].ID, "earlier snapshots must not be rewritten")
}

func TestClearLeavesProfitUntouched(t *testing.T) {
	g := New()
	require.NoError(t, g.Open(eth, pos("a", 100, 1)))
	_, _, err := g.Close(eth, "a", 110, 1)
	require.NoError(t, err)
	require.NoError(t, g.Open(eth, pos("b", 100, 3)))

	removed := g.Clear(eth)
	assert.Len(t, removed, 1)
	assert.False(t, g.Instrument(eth).HasOpen())
	assert.InDelta(t, 10.0, g.GlobalRealizedProfit, 1e-12)
	assert.InDelta(t, 10.0, g.Instrument(eth).RealizedProfit, 1e-12)

	assert.Nil(t, g.Clear(market.Symbol("NOPE/USDT")))
}

func TestCloneIsDeep(t *testing.T) {
	g := New()
	require.NoError(t, g.Open(eth, pos("a", 100, 1)))

	c := g.Clone()
	require.NoError(t, g.Open(eth, pos("b", 100, 1)))
	_, _, err := g.Close(eth, "a", 120, 1)
	require.NoError(t, err)

	assert.Len(t, c.Instrument(eth).OpenPositions, 1)
	assert.Equal(t, 0.0, c.GlobalRealizedProfit)
}

func TestJSONRoundTrip(t *testing.T) {
	g := New()
	require.NoError(t, g.Open(eth, pos("a", 100.123456789, 0.000123)))
	r := pos("r", 42, 7)
	r.Origin = OriginReconciled
	require.NoError(t, g.Open(market.Symbol("SOL/USDT"), r))
	_, _, err := g.Close(eth, "a", 101.5, 0.000123)
	require.NoError(t, err)
	require.NoError(t, g.Open(eth, pos("b", 99.9, 1.5)))
	g.Instrument(market.Symbol("ADA/USDT"))

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var back GlobalState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g, &back)

	empty := New()
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	var backEmpty GlobalState
	require.NoError(t, json.Unmarshal(data, &backEmpty))
	assert.Equal(t, empty, &backEmpty)
}

func TestUnrealizedProfit(t *testing.T) {
	p := pos("a", 100, 2)
	assert.InDelta(t, 10.0, p.UnrealizedProfit(105), 1e-12)
	assert.InDelta(t, -6.0, p.UnrealizedProfit(97), 1e-12)
	s := InstrumentState{OpenPositions: []Position{pos("a", 1, 2), pos("b", 1, 0.5)}}
	assert.InDelta(t, 2.5, s.OpenQuantity(), 1e-12)
}
