package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(id, instrument string, closeAt time.Time, pl float64) TradeRecord {
	return TradeRecord{
		TradeID:    id,
		Instrument: instrument,
		Quantity:   0.01,
		EntryPrice: 100,
		ExitPrice:  100 + pl*100,
		OpenTime:   closeAt.Add(-time.Hour),
		CloseTime:  closeAt,
		RealizedPL: pl,
		Reason:     "RSI_EXIT",
		Origin:     "SIGNAL",
	}
}

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	want := trade("T123", "BTC/USDT", time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC), 0.375)
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade("T123")
	require.NoError(t, err)

	assert.Equal(t, want.TradeID, got.TradeID)
	assert.Equal(t, want.Instrument, got.Instrument)
	assert.InDelta(t, want.Quantity, got.Quantity, 1e-12)
	assert.InDelta(t, want.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, want.ExitPrice, got.ExitPrice, 1e-9)
	assert.True(t, got.OpenTime.Equal(want.OpenTime))
	assert.True(t, got.CloseTime.Equal(want.CloseTime))
	assert.InDelta(t, want.RealizedPL, got.RealizedPL, 1e-9)
	assert.Equal(t, want.Reason, got.Reason)
	assert.Equal(t, want.Origin, got.Origin)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Inserted out of order to check sorting.
	for _, rec := range []TradeRecord{
		trade("T3", "ETH/USDT", base.Add(10*time.Hour), 0.5),
		trade("T1", "ETH/USDT", base.Add(1*time.Hour), 0.1),
		trade("T4", "BTC/USDT", base.Add(24*time.Hour), 0.2),
		trade("T2", "BTC/USDT", base.Add(5*time.Hour), -0.1),
	} {
		require.NoError(t, j.RecordTrade(rec))
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       []string
	}{
		{"window", base.Add(3 * time.Hour), base.Add(12 * time.Hour), []string{"T2", "T3"}},
		{"whole day ordered", base, base.Add(24 * time.Hour), []string{"T1", "T2", "T3"}},
		{"start inclusive", base.Add(5 * time.Hour), base.Add(6 * time.Hour), []string{"T2"}},
		{"end exclusive", base.Add(4 * time.Hour), base.Add(5 * time.Hour), nil},
		{"no matches", base.AddDate(0, 1, 0), base.AddDate(0, 2, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.ListTradesClosedBetween(tt.start, tt.end)
			require.NoError(t, err)

			var ids []string
			for _, r := range got {
				ids = append(ids, r.TradeID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := Summarize([]TradeRecord{
		trade("a", "ETH/USDT", now, 0.5),
		trade("b", "ETH/USDT", now, -0.25),
		trade("c", "ETH/USDT", now, 0.25),
		trade("d", "ETH/USDT", now, 0),
	})

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.75, s.GrossProfit, 1e-12)
	assert.InDelta(t, 0.25, s.GrossLoss, 1e-12)
	assert.InDelta(t, 0.5, s.NetProfit, 1e-12)
	assert.InDelta(t, 3, s.ProfitFactor, 1e-12)

	assert.Equal(t, Summary{}, Summarize(nil))
}
