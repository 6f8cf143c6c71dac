package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/binance"
	"github.com/rustyeddy/scalper/broker/paper"
	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/internal/logger"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/metrics"
	"github.com/rustyeddy/scalper/store"
)

// app is everything a command needs, wired from one config.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	exchange broker.Exchange
	store    store.Store
	journal  journal.Journal
	metrics  *metrics.Metrics
	engine   *engine.Engine

	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newApp builds the exchange, store, journal and engine and loads the
// persisted ledger. A corrupt snapshot is fatal.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *app, err error) {
	log, err := logger.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	switch cfg.Exchange.Name {
	case "binance":
		a.exchange = binance.NewClient(cfg.Binance())
	default:
		a.exchange = paper.New(cfg.PaperExchange())
	}
	log.Info("exchange ready", slog.String("exchange", cfg.Exchange.Name), slog.Bool("testnet", cfg.Exchange.Testnet))

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st)

	state, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	log.Info("ledger loaded",
		slog.String("store", cfg.Store.Type),
		slog.Int("open_positions", state.OpenCount()),
		slog.Float64("global_realized_profit", state.GlobalRealizedProfit))

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.journal = j
	a.closers = append(a.closers, j)

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	a.engine, err = engine.New(cfg.Engine(), engine.Deps{
		Market:  a.exchange,
		Gateway: a.exchange,
		Store:   st,
		State:   state,
		Journal: j,
		Metrics: a.metrics,
		Logger:  log,
		Locker:  locker,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.BalancesFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return journal.Discard{}, nil
	}
}

// newLocker returns a Redis lock when configured, reusing the store's client
// if the ledger lives in the same Redis. Otherwise the lock is in-process.
func (a *app) newLocker(ctx context.Context) (store.Locker, error) {
	rc := a.cfg.Store.Redis
	if !rc.Lock {
		return store.NewLocalLocker(), nil
	}
	if rs, ok := a.store.(*store.Redis); ok {
		return store.NewRedisLocker(rs.Client()), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis lock %s: %w", rc.Addr, err)
	}
	a.closers = append(a.closers, rdb)
	return store.NewRedisLocker(rdb), nil
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Warn("close failed", slog.String("error", err.Error()))
	}
}

// setup is the common prologue of the trading commands.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, os.Stderr)
}
