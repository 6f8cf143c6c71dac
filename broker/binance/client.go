// Package binance is a REST gateway for Binance spot. It implements
// broker.Exchange with market orders only.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

const (
	// LiveURL is the production spot API.
	LiveURL = "https://api.binance.com"
	// TestnetURL is the spot test network.
	TestnetURL = "https://testnet.binance.vision"
)

// insufficientBalanceCode is returned by the order endpoint when the account
// cannot cover the order.
const insufficientBalanceCode = -2010

// Config holds credentials and transport settings.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool

	// BaseURL overrides LiveURL / TestnetURL.
	BaseURL    string
	Timeout    time.Duration
	RecvWindow time.Duration
}

// Client represents a Binance spot API client
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	recvWindow time.Duration
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	instruments map[market.Symbol]market.InstrumentMeta
}

var _ broker.Exchange = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = LiveURL
		if cfg.Testnet {
			baseURL = TestnetURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	recv := cfg.RecvWindow
	if recv <= 0 {
		recv = 5 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		secret:      cfg.APISecret,
		recvWindow:  recv,
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
		instruments: make(map[market.Symbol]market.InstrumentMeta),
	}
}

// APIError is a non-2xx answer from the exchange.
type APIError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error (status %d, code %d): %s", e.Status, e.Code, e.Msg)
}

// Is lets callers match insufficient-balance rejections with errors.Is.
func (e *APIError) Is(target error) bool {
	return target == broker.ErrInsufficientBalance && e.Code == insufficientBalanceCode
}

// sign appends timestamp, recvWindow and the HMAC-SHA256 signature of the
// encoded query.
func (c *Client) sign(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		query = c.sign(params)
	}

	apiURL := c.baseURL + path
	if query != "" {
		apiURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetCandles fetches the most recent limit klines, oldest first. The last
// candle is usually still forming.
func (c *Client) GetCandles(ctx context.Context, sym market.Symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 || limit > 1000 {
		return nil, fmt.Errorf("limit must be in 1..1000, got %d", limit)
	}

	params := url.Values{}
	params.Set("symbol", sym.Compact())
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	// Each kline is a positional array; prices arrive as strings.
	var raw [][]any
	if err := c.do(ctx, http.MethodGet, "/api/v3/klines", params, false, &raw); err != nil {
		return nil, fmt.Errorf("klines %s: %w", sym, err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for i, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("klines %s: row %d has %d fields", sym, i, len(k))
		}
		openMs, ok := k[0].(float64)
		if !ok {
			return nil, fmt.Errorf("klines %s: row %d open time %v", sym, i, k[0])
		}
		var vals [5]float64
		for j := range vals {
			v, err := parseField(k[j+1])
			if err != nil {
				return nil, fmt.Errorf("klines %s: row %d field %d: %w", sym, i, j+1, err)
			}
			vals[j] = v
		}
		candles = append(candles, market.Candle{
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
			Time:   time.UnixMilli(int64(openMs)).UTC(),
		})
	}
	return candles, nil
}

func (c *Client) RecentCloses(ctx context.Context, sym market.Symbol, timeframe string, count int) ([]float64, error) {
	candles, err := c.GetCandles(ctx, sym, timeframe, count)
	if err != nil {
		return nil, err
	}
	return market.Closes(candles), nil
}

func (c *Client) LastPrice(ctx context.Context, sym market.Symbol) (float64, error) {
	params := url.Values{}
	params.Set("symbol", sym.Compact())

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", params, false, &resp); err != nil {
		return 0, fmt.Errorf("ticker %s: %w", sym, err)
	}

	p, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("ticker %s: price %q: %w", sym, resp.Price, broker.ErrPriceUnavailable)
	}
	return p, nil
}

// Balances returns the free amount of every asset the account holds.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	params := url.Values{}
	params.Set("omitZeroBalances", "true")
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", params, true, &resp); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	out := make(map[string]float64, len(resp.Balances))
	for _, b := range resp.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("account: %s free %q: %w", b.Asset, b.Free, err)
		}
		out[b.Asset] = free
	}
	return out, nil
}

func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return 0, err
	}
	return balances[asset], nil
}

// Instrument returns the lot-size constraints for sym, fetched once and cached.
func (c *Client) Instrument(ctx context.Context, sym market.Symbol) (market.InstrumentMeta, error) {
	c.mu.Lock()
	meta, ok := c.instruments[sym]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}

	params := url.Values{}
	params.Set("symbol", sym.Compact())

	var resp struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false, &resp); err != nil {
		return market.InstrumentMeta{}, fmt.Errorf("exchange info %s: %w", sym, err)
	}
	if len(resp.Symbols) == 0 {
		return market.InstrumentMeta{}, fmt.Errorf("exchange info %s: symbol not listed", sym)
	}

	meta = market.InstrumentMeta{Symbol: sym}
	for _, f := range resp.Symbols[0].Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			meta.StepSize, _ = strconv.ParseFloat(f.StepSize, 64)
			meta.MinQuantity, _ = strconv.ParseFloat(f.MinQty, 64)
		case "NOTIONAL", "MIN_NOTIONAL":
			meta.MinNotional, _ = strconv.ParseFloat(f.MinNotional, 64)
		}
	}

	c.mu.Lock()
	c.instruments[sym] = meta
	c.mu.Unlock()
	return meta, nil
}

func (c *Client) RoundQuantity(ctx context.Context, sym market.Symbol, quantity float64) (float64, error) {
	meta, err := c.Instrument(ctx, sym)
	if err != nil {
		return 0, err
	}
	if meta.MinNotional <= 0 {
		return meta.Floor(quantity), nil
	}
	// The venue rejects orders worth less than the NOTIONAL filter.
	price, err := c.LastPrice(ctx, sym)
	if err != nil {
		return 0, err
	}
	return meta.FloorAt(quantity, price), nil
}

func (c *Client) MarketBuy(ctx context.Context, sym market.Symbol, quantity float64) (broker.Fill, error) {
	return c.marketOrder(ctx, sym, broker.Buy, quantity)
}

func (c *Client) MarketSell(ctx context.Context, sym market.Symbol, quantity float64) (broker.Fill, error) {
	return c.marketOrder(ctx, sym, broker.Sell, quantity)
}

type orderResponse struct {
	OrderID             int64  `json:"orderId"`
	Status              string `json:"status"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
}

func (c *Client) marketOrder(ctx context.Context, sym market.Symbol, side broker.Side, quantity float64) (broker.Fill, error) {
	if quantity <= 0 {
		return broker.Fill{}, fmt.Errorf("order %s %s: quantity must be > 0", side, sym)
	}

	decimals := -1
	c.mu.Lock()
	if meta, ok := c.instruments[sym]; ok && meta.StepSize > 0 {
		decimals = market.StepDecimals(meta.StepSize)
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("symbol", sym.Compact())
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', decimals, 64))
	params.Set("newOrderRespType", "FULL")

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", params, true, &resp); err != nil {
		return broker.Fill{}, fmt.Errorf("order %s %s: %w", side, sym, err)
	}

	fill := broker.Fill{
		OrderID:   strconv.FormatInt(resp.OrderID, 10),
		Symbol:    sym,
		Side:      side,
		Requested: quantity,
	}
	// Missing or unparsable execution fields leave the fallbacks in place.
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(resp.CummulativeQuoteQty, 64)
	if executed > 0 {
		fill.Filled = executed
		fill.AvgPrice = quote / executed
	}
	return fill, nil
}

func parseField(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, errors.New("unexpected type")
	}
}
