package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

const ethusdt = market.Symbol("ETH/USDT")

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		APIKey:    "test-key",
		APISecret: "test-secret",
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		c := NewClient(Config{APIKey: "k", APISecret: "s"})
		assert.Equal(t, LiveURL, c.baseURL)
		assert.Equal(t, 5*time.Second, c.recvWindow)
		assert.NotNil(t, c.httpClient)
	})

	t.Run("testnet", func(t *testing.T) {
		c := NewClient(Config{Testnet: true})
		assert.Equal(t, TestnetURL, c.baseURL)
	})

	t.Run("explicit url wins", func(t *testing.T) {
		c := NewClient(Config{Testnet: true, BaseURL: "http://localhost:1"})
		assert.Equal(t, "http://localhost:1", c.baseURL)
	})
}

func TestRecentCloses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1700000000000,"2000.0","2010.0","1995.0","2005.5","12.3",1700000059999,"0",10,"0","0","0"],
			[1700000060000,"2005.5","2012.0","2001.0","2008.25","8.1",1700000119999,"0",8,"0","0","0"],
			[1700000120000,"2008.25","2009.0","1999.0","2001.0","3.2",1700000179999,"0",3,"0","0","0"]
		]`))
	})

	closes, err := c.RecentCloses(context.Background(), ethusdt, "1m", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2005.5, 2008.25, 2001.0}, closes)

	candles, err := c.GetCandles(context.Background(), ethusdt, "1m", 3)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, candles[0].Open)
	assert.Equal(t, 12.3, candles[0].Volume)
	assert.True(t, candles[1].Time.Equal(time.UnixMilli(1700000060000)))
}

func TestGetCandlesValidation(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.GetCandles(context.Background(), ethusdt, "1m", 0)
	assert.Error(t, err)
	_, err = c.GetCandles(context.Background(), ethusdt, "1m", 1001)
	assert.Error(t, err)
}

func TestGetCandlesMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1700000000000,"x","1","1","1","1"]]`))
	})
	_, err := c.RecentCloses(context.Background(), ethusdt, "1m", 1)
	assert.Error(t, err)
}

func TestLastPrice(t *testing.T) {
	price := "2210.50"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"` + price + `"}`))
	})

	p, err := c.LastPrice(context.Background(), ethusdt)
	require.NoError(t, err)
	assert.Equal(t, 2210.5, p)

	price = "0.00000000"
	_, err = c.LastPrice(context.Background(), ethusdt)
	assert.ErrorIs(t, err, broker.ErrPriceUnavailable)
}

func TestFreeBalanceIsSigned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.RawQuery
		idx := strings.Index(q, "&signature=")
		if !assert.Greater(t, idx, 0) {
			return
		}

		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(q[:idx]))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), q[idx+len("&signature="):])
		assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))

		_, _ = w.Write([]byte(`{"balances":[{"asset":"USDT","free":"123.45","locked":"0"},{"asset":"ETH","free":"0.0045","locked":"0"}]}`))
	})

	usdt, err := c.FreeBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 123.45, usdt)

	btc, err := c.FreeBalance(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Zero(t, btc)
}

func TestRoundQuantityCachesExchangeInfo(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/ticker/price" {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"2000.00"}`))
			return
		}
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		calls.Add(1)
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"ETHUSDT","filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.01"},
			{"filterType":"LOT_SIZE","minQty":"0.00010000","maxQty":"9000.0","stepSize":"0.00010000"},
			{"filterType":"NOTIONAL","minNotional":"5.00000000"}
		]}]}`))
	})
	ctx := context.Background()

	q, err := c.RoundQuantity(ctx, ethusdt, 0.00456789)
	require.NoError(t, err)
	assert.Equal(t, 0.0045, q)

	q, err = c.RoundQuantity(ctx, ethusdt, 0.00005)
	require.NoError(t, err)
	assert.Zero(t, q)

	// 0.002 * 2000 is below the 5 USDT notional floor.
	q, err = c.RoundQuantity(ctx, ethusdt, 0.002)
	require.NoError(t, err)
	assert.Zero(t, q)

	meta, err := c.Instrument(ctx, ethusdt)
	require.NoError(t, err)
	assert.Equal(t, 5.0, meta.MinNotional)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMarketOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ETHUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.0045", q.Get("quantity"))
		assert.Equal(t, "FULL", q.Get("newOrderRespType"))
		assert.NotEmpty(t, q.Get("signature"))

		_, _ = w.Write([]byte(`{"orderId":42,"status":"FILLED","executedQty":"0.00450000","cummulativeQuoteQty":"9.94725000"}`))
	})

	fill, err := c.MarketBuy(context.Background(), ethusdt, 0.0045)
	require.NoError(t, err)
	assert.Equal(t, "42", fill.OrderID)
	assert.Equal(t, broker.Buy, fill.Side)
	assert.Equal(t, 0.0045, fill.Requested)
	assert.Equal(t, 0.0045, fill.Filled)
	assert.InDelta(t, 2210.5, fill.AvgPrice, 1e-9)
}

func TestMarketOrderWithoutExecutionReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":7}`))
	})

	fill, err := c.MarketSell(context.Background(), ethusdt, 0.01)
	require.NoError(t, err)
	assert.Zero(t, fill.Filled)
	assert.Equal(t, 0.01, fill.FilledQuantity())
	assert.Equal(t, 2000.0, fill.PriceOr(2000))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	})

	_, err := c.MarketSell(context.Background(), ethusdt, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrInsufficientBalance)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, -2010, apiErr.Code)
}

func TestAPIErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := c.LastPrice(context.Background(), ethusdt)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "slow down", apiErr.Msg)
	assert.NotErrorIs(t, err, broker.ErrInsufficientBalance)
}

func TestOrderRejectsNonPositiveQuantity(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.MarketBuy(context.Background(), ethusdt, 0)
	assert.Error(t, err)
}
