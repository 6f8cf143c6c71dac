// Package engine runs the position lifecycle: it turns oscillator crossings
// and risk limits into market orders, books the results in the ledger and
// persists every mutation.
//
// All mutating work happens under one mutex. A polling cycle, a
// reconciliation and an emergency liquidation never overlap, and within a
// cycle instruments are processed one after another.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/ledger"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/metrics"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/signals"
	"github.com/rustyeddy/scalper/store"
)

// ErrCycleInProgress is returned when a cycle, reconciliation or liquidation
// is already running.
var ErrCycleInProgress = errors.New("cycle in progress")

// Config holds the trading parameters.
type Config struct {
	Instruments []market.Symbol

	// Quote is the asset whose free balance funds new entries.
	Quote string

	Timeframe  string
	Period     int
	Thresholds signals.Thresholds
	Policy     risk.Policy

	// SettleDelay is slept after orders so the exchange balance catches up.
	SettleDelay time.Duration

	// DustThreshold is the base balance at or below which holdings are ignored.
	DustThreshold float64

	// RetryBase and RetryMax bound the wait between failed close attempts
	// for the same position.
	RetryBase time.Duration
	RetryMax  time.Duration

	// LockTTL is how long a cross-process lock is held at most.
	LockTTL time.Duration
}

func (c Config) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.New("no instruments configured")
	}
	if c.Quote == "" {
		return errors.New("quote asset is required")
	}
	for _, sym := range c.Instruments {
		if sym.Quote() != c.Quote {
			return fmt.Errorf("instrument %s is not quoted in %s", sym, c.Quote)
		}
	}
	if c.Timeframe == "" {
		return errors.New("timeframe is required")
	}
	if c.Period < 1 {
		return fmt.Errorf("period must be >= 1, got %d", c.Period)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.SettleDelay < 0 {
		return errors.New("settle delay must not be negative")
	}
	if c.DustThreshold < 0 {
		return errors.New("dust threshold must not be negative")
	}
	return nil
}

// Deps are the collaborators. Market, Gateway, Store and State are required.
type Deps struct {
	Market  broker.MarketData
	Gateway broker.Gateway
	Store   store.Store
	State   *ledger.GlobalState

	Journal journal.Journal
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Locker, when set, extends mutual exclusion to other processes
	// trading the same account.
	Locker store.Locker
}

type Engine struct {
	cfg     Config
	market  broker.MarketData
	gateway broker.Gateway
	store   store.Store
	state   *ledger.GlobalState
	journal journal.Journal
	metrics *metrics.Metrics
	log     *slog.Logger
	locker  store.Locker

	mu      sync.Mutex
	retries *retryTracker

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if deps.Market == nil || deps.Gateway == nil {
		return nil, errors.New("engine: market data and gateway are required")
	}
	if deps.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if deps.State == nil {
		return nil, errors.New("engine: ledger state is required")
	}
	if deps.Journal == nil {
		deps.Journal = journal.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 10 * time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}

	return &Engine{
		cfg:     cfg,
		market:  deps.Market,
		gateway: deps.Gateway,
		store:   deps.Store,
		state:   deps.State,
		journal: deps.Journal,
		metrics: deps.Metrics,
		log:     deps.Logger.With(slog.String("component", "engine")),
		locker:  deps.Locker,
		retries: newRetryTracker(cfg.RetryBase, cfg.RetryMax),
		now:     time.Now,
		sleep:   sleepContext,
	}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Snapshot returns a deep copy of the ledger for reporting. It waits for any
// running cycle to finish.
func (e *Engine) Snapshot() *ledger.GlobalState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// exclusive runs fn while holding the engine mutex and, if configured, the
// cross-process lock. It never waits: a held lock yields ErrCycleInProgress.
func (e *Engine) exclusive(ctx context.Context, name string, fn func(context.Context) error) error {
	if !e.mu.TryLock() {
		return fmt.Errorf("%s: %w", name, ErrCycleInProgress)
	}
	defer e.mu.Unlock()

	if e.locker != nil {
		unlock, err := e.locker.Acquire(ctx, "engine", e.cfg.LockTTL)
		if errors.Is(err, store.ErrLockHeld) {
			return fmt.Errorf("%s: %w", name, ErrCycleInProgress)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defer unlock()
	}
	return fn(ctx)
}

// persist saves the whole ledger. A failed save is logged and counted but not
// returned: the in-memory state stays authoritative until the next save.
func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.state); err != nil {
		e.metrics.PersistFailed()
		e.log.WarnContext(ctx, "ledger save failed, state will not survive a crash",
			slog.String("error", err.Error()))
	}
}

func (e *Engine) settle(ctx context.Context) {
	if e.cfg.SettleDelay <= 0 {
		return
	}
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		e.log.DebugContext(ctx, "settle delay interrupted", slog.String("error", err.Error()))
	}
}

func (e *Engine) observePositions(sym market.Symbol) {
	s := e.state.Instrument(sym)
	e.metrics.Positions(string(sym), len(s.OpenPositions), e.state.GlobalRealizedProfit)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
