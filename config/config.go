// Package config loads the scalper configuration from YAML, JSON or TOML
// files, with SCALPER_* environment overrides layered on top.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scalper/broker/binance"
	"github.com/rustyeddy/scalper/broker/paper"
	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/signals"
	"github.com/rustyeddy/scalper/store"
)

// Config represents the complete runtime configuration
type Config struct {
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange" toml:"exchange"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy" toml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk" toml:"risk"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule" toml:"schedule"`
	Store    StoreConfig    `json:"store" yaml:"store" toml:"store"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" toml:"journal"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" toml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log" toml:"log"`
	Paper    PaperConfig    `json:"paper" yaml:"paper" toml:"paper"`
}

// ExchangeConfig selects the venue and holds its credentials
type ExchangeConfig struct {
	Name      string `json:"name" yaml:"name" toml:"name"` // "paper" or "binance"
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty" yaml:"api_secret,omitempty" toml:"api_secret,omitempty"`
	Testnet   bool   `json:"testnet" yaml:"testnet" toml:"testnet"`
	Quote     string `json:"quote" yaml:"quote" toml:"quote"`
	Timeframe string `json:"timeframe" yaml:"timeframe" toml:"timeframe"`
	Timeout   string `json:"timeout" yaml:"timeout" toml:"timeout"`
}

// StrategyConfig contains the oscillator parameters
type StrategyConfig struct {
	Instruments   []string `json:"instruments" yaml:"instruments" toml:"instruments"`
	RSIPeriod     int      `json:"rsi_period" yaml:"rsi_period" toml:"rsi_period"`
	BuyThreshold  float64  `json:"buy_threshold" yaml:"buy_threshold" toml:"buy_threshold"`
	SellThreshold float64  `json:"sell_threshold" yaml:"sell_threshold" toml:"sell_threshold"`
}

// RiskConfig contains the per-position limits
type RiskConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" toml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct" toml:"take_profit_pct"`
	TradeCapital  float64 `json:"trade_capital" yaml:"trade_capital" toml:"trade_capital"`
	DustThreshold float64 `json:"dust_threshold" yaml:"dust_threshold" toml:"dust_threshold"`
}

// ScheduleConfig holds the timing parameters. Durations use Go syntax,
// e.g. "10s" or "1m30s".
type ScheduleConfig struct {
	PollInterval   string `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	SettleDelay    string `json:"settle_delay" yaml:"settle_delay" toml:"settle_delay"`
	CloseRetryBase string `json:"close_retry_base" yaml:"close_retry_base" toml:"close_retry_base"`
	CloseRetryMax  string `json:"close_retry_max" yaml:"close_retry_max" toml:"close_retry_max"`
	LockTTL        string `json:"lock_ttl" yaml:"lock_ttl" toml:"lock_ttl"`
}

// StoreConfig selects where the ledger snapshot lives
type StoreConfig struct {
	Type  string      `json:"type" yaml:"type" toml:"type"` // "file", "sqlite", "redis" or "s3"
	Path  string      `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Redis RedisConfig `json:"redis" yaml:"redis" toml:"redis"`
	S3    S3Config    `json:"s3" yaml:"s3" toml:"s3"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty" toml:"key,omitempty"`
	TLS      bool   `json:"tls" yaml:"tls" toml:"tls"`

	// Lock makes cycles and liquidations exclusive across every process
	// sharing this Redis.
	Lock bool `json:"lock" yaml:"lock" toml:"lock"`
}

type S3Config struct {
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Region         string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
	Bucket         string `json:"bucket,omitempty" yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Key            string `json:"key,omitempty" yaml:"key,omitempty" toml:"key,omitempty"`
	AccessKey      string `json:"access_key,omitempty" yaml:"access_key,omitempty" toml:"access_key,omitempty"`
	SecretKey      string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" toml:"secret_key,omitempty"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style" toml:"force_path_style"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type         string `json:"type" yaml:"type" toml:"type"` // "none", "csv" or "sqlite"
	TradesFile   string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" toml:"trades_file,omitempty"`
	BalancesFile string `json:"balances_file,omitempty" yaml:"balances_file,omitempty" toml:"balances_file,omitempty"`
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"` // empty disables /metrics
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // "json" or "text"
}

// PaperConfig seeds the simulated exchange
type PaperConfig struct {
	QuoteBalance float64            `json:"quote_balance" yaml:"quote_balance" toml:"quote_balance"`
	StartPrice   float64            `json:"start_price" yaml:"start_price" toml:"start_price"`
	Prices       map[string]float64 `json:"prices,omitempty" yaml:"prices,omitempty" toml:"prices,omitempty"`
	StepSize     float64            `json:"step_size" yaml:"step_size" toml:"step_size"`
	Volatility   float64            `json:"volatility" yaml:"volatility" toml:"volatility"`
	History      int                `json:"history" yaml:"history" toml:"history"`
	Seed         uint64             `json:"seed" yaml:"seed" toml:"seed"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Name:      "paper",
			Quote:     "USDT",
			Timeframe: "1m",
			Timeout:   "10s",
		},
		Strategy: StrategyConfig{
			Instruments:   []string{"BTC/USDT", "ETH/USDT"},
			RSIPeriod:     14,
			BuyThreshold:  35,
			SellThreshold: 65,
		},
		Risk: RiskConfig{
			StopLossPct:   0.03,
			TakeProfitPct: 0.05,
			TradeCapital:  10,
			DustThreshold: 0.0001,
		},
		Schedule: ScheduleConfig{
			PollInterval:   "10s",
			SettleDelay:    "3s",
			CloseRetryBase: "10s",
			CloseRetryMax:  "10m",
			LockTTL:        "5m",
		},
		Store: StoreConfig{
			Type: "file",
			Path: "./ledger.json",
		},
		Journal: JournalConfig{
			Type:         "csv",
			TradesFile:   "./trades.csv",
			BalancesFile: "./balances.csv",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Paper: PaperConfig{
			QuoteBalance: 1000,
			StartPrice:   100,
			Prices:       map[string]float64{"BTC/USDT": 60000, "ETH/USDT": 3000},
			StepSize:     0.00001,
			Volatility:   0.002,
			History:      50,
			Seed:         1,
		},
	}
}

// Load reads .env if present, then the config file at path on top of the
// defaults, then SCALPER_* overrides. An empty path skips the file. The
// result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON, YAML or TOML based on
// extension) without consulting the environment
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse config (toml): %w", err)
		}
		return nil
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON, YAML or TOML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Credentials may be inside.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Exchange.Name {
	case "paper":
	case "binance":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return errors.New("exchange.api_key and exchange.api_secret are required for binance")
		}
	default:
		return fmt.Errorf("exchange.name must be 'paper' or 'binance', got %q", c.Exchange.Name)
	}
	if c.Exchange.Quote == "" {
		return errors.New("exchange.quote is required")
	}
	if _, err := market.TimeframeDuration(c.Exchange.Timeframe); err != nil {
		return fmt.Errorf("exchange.timeframe: %w", err)
	}

	if len(c.Strategy.Instruments) == 0 {
		return errors.New("strategy.instruments must not be empty")
	}
	seen := make(map[market.Symbol]bool, len(c.Strategy.Instruments))
	for _, s := range c.Strategy.Instruments {
		sym, err := market.ParseSymbol(s)
		if err != nil {
			return fmt.Errorf("strategy.instruments: %w", err)
		}
		if sym.Quote() != c.Exchange.Quote {
			return fmt.Errorf("strategy.instruments: %s is not quoted in %s", sym, c.Exchange.Quote)
		}
		if seen[sym] {
			return fmt.Errorf("strategy.instruments: duplicate %s", sym)
		}
		seen[sym] = true
	}
	if c.Strategy.RSIPeriod < 1 {
		return errors.New("strategy.rsi_period must be positive")
	}
	if err := c.thresholds().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if err := c.policy().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Risk.DustThreshold < 0 {
		return errors.New("risk.dust_threshold must not be negative")
	}

	for name, v := range map[string]string{
		"exchange.timeout":          c.Exchange.Timeout,
		"schedule.poll_interval":    c.Schedule.PollInterval,
		"schedule.settle_delay":     c.Schedule.SettleDelay,
		"schedule.close_retry_base": c.Schedule.CloseRetryBase,
		"schedule.close_retry_max":  c.Schedule.CloseRetryMax,
		"schedule.lock_ttl":         c.Schedule.LockTTL,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if d, _ := parseDuration(c.Schedule.PollInterval); d <= 0 {
		return errors.New("schedule.poll_interval must be positive")
	}

	switch c.Store.Type {
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for %s store", c.Store.Type)
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr required for redis store")
		}
	case "s3":
		if c.Store.S3.Bucket == "" || c.Store.S3.Region == "" {
			return errors.New("store.s3.bucket and store.s3.region required for s3 store")
		}
	default:
		return fmt.Errorf("store.type must be 'file', 'sqlite', 'redis' or 's3', got %q", c.Store.Type)
	}
	if c.Store.Redis.Lock && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr required when store.redis.lock is set")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.BalancesFile == "" {
			return errors.New("journal trades_file and balances_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return errors.New("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Exchange.Name == "paper" {
		if c.Paper.QuoteBalance < 0 {
			return errors.New("paper.quote_balance must not be negative")
		}
		if c.Paper.StepSize <= 0 {
			return errors.New("paper.step_size must be positive")
		}
		for _, sym := range c.Symbols() {
			if c.paperPrice(sym) <= 0 {
				return fmt.Errorf("paper: no positive start price for %s", sym)
			}
		}
	}
	return nil
}

// Symbols returns the configured instruments in order.
func (c *Config) Symbols() []market.Symbol {
	out := make([]market.Symbol, 0, len(c.Strategy.Instruments))
	for _, s := range c.Strategy.Instruments {
		sym, err := market.ParseSymbol(s)
		if err != nil {
			continue
		}
		out = append(out, sym)
	}
	return out
}

func (c *Config) thresholds() signals.Thresholds {
	return signals.Thresholds{Buy: c.Strategy.BuyThreshold, Sell: c.Strategy.SellThreshold}
}

func (c *Config) policy() risk.Policy {
	return risk.Policy{
		StopLossPct:   c.Risk.StopLossPct,
		TakeProfitPct: c.Risk.TakeProfitPct,
		TradeCapital:  c.Risk.TradeCapital,
	}
}

// PollInterval is the scheduler period. Call after Validate.
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Schedule.PollInterval)
	return d
}

// Engine converts the trading sections into an engine configuration.
func (c *Config) Engine() engine.Config {
	settle, _ := parseDuration(c.Schedule.SettleDelay)
	base, _ := parseDuration(c.Schedule.CloseRetryBase)
	ceiling, _ := parseDuration(c.Schedule.CloseRetryMax)
	ttl, _ := parseDuration(c.Schedule.LockTTL)
	return engine.Config{
		Instruments:   c.Symbols(),
		Quote:         c.Exchange.Quote,
		Timeframe:     c.Exchange.Timeframe,
		Period:        c.Strategy.RSIPeriod,
		Thresholds:    c.thresholds(),
		Policy:        c.policy(),
		SettleDelay:   settle,
		DustThreshold: c.Risk.DustThreshold,
		RetryBase:     base,
		RetryMax:      ceiling,
		LockTTL:       ttl,
	}
}

func (c *Config) Binance() binance.Config {
	timeout, _ := parseDuration(c.Exchange.Timeout)
	return binance.Config{
		APIKey:    c.Exchange.APIKey,
		APISecret: c.Exchange.APISecret,
		Testnet:   c.Exchange.Testnet,
		BaseURL:   c.Exchange.BaseURL,
		Timeout:   timeout,
	}
}

// PaperExchange seeds the simulated venue with the quote balance and a start
// price for every configured instrument.
func (c *Config) PaperExchange() paper.Config {
	prices := make(map[market.Symbol]float64, len(c.Strategy.Instruments))
	for _, sym := range c.Symbols() {
		prices[sym] = c.paperPrice(sym)
	}
	return paper.Config{
		Balances:   map[string]float64{c.Exchange.Quote: c.Paper.QuoteBalance},
		Prices:     prices,
		StepSize:   c.Paper.StepSize,
		Volatility: c.Paper.Volatility,
		History:    c.Paper.History,
		Seed:       c.Paper.Seed,
	}
}

func (c *Config) paperPrice(sym market.Symbol) float64 {
	if p, ok := c.Paper.Prices[string(sym)]; ok {
		return p
	}
	return c.Paper.StartPrice
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Type: c.Store.Type,
		Path: c.Store.Path,
		Redis: store.RedisOptions{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
			Key:      c.Store.Redis.Key,
			TLS:      c.Store.Redis.TLS,
		},
		S3: store.S3Options{
			Endpoint:       c.Store.S3.Endpoint,
			Region:         c.Store.S3.Region,
			Bucket:         c.Store.S3.Bucket,
			Key:            c.Store.S3.Key,
			AccessKey:      c.Store.S3.AccessKey,
			SecretKey:      c.Store.S3.SecretKey,
			ForcePathStyle: c.Store.S3.ForcePathStyle,
		},
	}
}

// Redacted returns a copy with every secret masked, safe to print or log.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Strategy.Instruments = append([]string(nil), c.Strategy.Instruments...)
	cp.Exchange.APIKey = mask(c.Exchange.APIKey)
	cp.Exchange.APISecret = mask(c.Exchange.APISecret)
	cp.Store.Redis.Password = mask(c.Store.Redis.Password)
	cp.Store.S3.AccessKey = mask(c.Store.S3.AccessKey)
	cp.Store.S3.SecretKey = mask(c.Store.S3.SecretKey)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", s)
	}
	return d, nil
}
