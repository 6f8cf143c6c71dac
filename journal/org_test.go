package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	open := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	close := time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC)

	result := FormatTradeOrg(TradeRecord{
		TradeID:    "01HS3QJ4Z8ABCDEFGHJKMNPQRS",
		Instrument: "ETH/USDT",
		Quantity:   0.0045,
		EntryPrice: 2210.5,
		ExitPrice:  2321.025,
		OpenTime:   open,
		CloseTime:  close,
		RealizedPL: 0.4973625,
		Reason:     "TAKE_PROFIT",
		Origin:     "SIGNAL",
	})

	assert.Contains(t, result, "** Trade: ETH/USDT (JKMNPQRS)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: 01HS3QJ4Z8ABCDEFGHJKMNPQRS")
	assert.Contains(t, result, ":INSTRUMENT: ETH/USDT")
	assert.Contains(t, result, ":QUANTITY: 0.00450000")
	assert.Contains(t, result, ":ENTRY_PRICE: 2210.50000000")
	assert.Contains(t, result, ":EXIT_PRICE: 2321.02500000")
	assert.Contains(t, result, ":OPEN_TIME: 2024-03-15T10:30:45Z")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":REALIZED_PL: 0.4974")
	assert.Contains(t, result, ":REASON: TAKE_PROFIT")
	assert.Contains(t, result, ":ORIGIN: SIGNAL")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradeOrgOmitsEmptyOrigin(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(TradeRecord{TradeID: "short", Instrument: "BTC/USDT", RealizedPL: -5})
	assert.Contains(t, result, "** Trade: BTC/USDT (short)")
	assert.Contains(t, result, ":REALIZED_PL: -5.0000")
	assert.NotContains(t, result, ":ORIGIN:")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	single := FormatTradesOrg([]TradeRecord{{TradeID: "one", Instrument: "ETH/USDT"}})
	assert.NotContains(t, single, "\n\n\n")

	both := FormatTradesOrg([]TradeRecord{
		{TradeID: "trade-001", Instrument: "ETH/USDT"},
		{TradeID: "trade-002", Instrument: "BTC/USDT"},
	})
	assert.Len(t, strings.Split(both, "\n\n\n"), 2)
	assert.Contains(t, both, "trade-001")
	assert.Contains(t, both, "trade-002")
}

func TestShortID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"01HS3QJ4Z8ABCDEFGHJKMNPQRS", "JKMNPQRS"},
		{"12345678", "12345678"},
		{"short", "short"},
		{"", ""},
		{"123456789", "23456789"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, shortID(tt.input), tt.input)
	}
}
