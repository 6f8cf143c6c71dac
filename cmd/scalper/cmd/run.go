package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling engine",
	Long: `Run loads the ledger, adopts untracked balances, then runs one cycle
immediately and another every schedule.poll_interval until interrupted.

A cycle reads the free quote balance, then for every instrument closes the
positions whose stop-loss, take-profit or RSI exit fired and opens a new
position on an RSI entry crossing when one trade_capital is available.

Examples:
  scalper run -c scalper.yaml
  SCALPER_EXCHANGE=binance SCALPER_TESTNET=true scalper run --once`,
	RunE: runRun,
}

var (
	runOnce        bool
	runNoReconcile bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	runCmd.Flags().BoolVar(&runNoReconcile, "no-reconcile", false, "skip adopting untracked balances at startup")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr := a.cfg.Metrics.Addr; addr != "" && !runOnce {
		srv := serveMetrics(a, addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !runNoReconcile {
		n, err := a.engine.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		a.log.Info("startup reconciliation done", slog.Int("adopted", n))
	}

	if runOnce {
		rep, err := a.engine.RunCycle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed=%d skipped=%d failed=%d transacted=%d open=%d free=%.2f realized=%.8f\n",
			rep.Processed, rep.Skipped, rep.Failed, rep.Transacted, rep.OpenCount, rep.FreeQuote, rep.GlobalProfit)
		return nil
	}

	sched := engine.NewScheduler(a.engine, a.cfg.PollInterval())
	if err := sched.Run(ctx); err != nil {
		return err
	}

	snap := a.engine.Snapshot()
	a.log.Info("stopped",
		slog.Int("open_positions", snap.OpenCount()),
		slog.Float64("global_realized_profit", snap.GlobalRealizedProfit))
	return nil
}

func serveMetrics(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}
