package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/ledger"
	"github.com/rustyeddy/scalper/market"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the ledger with unrealized profit at current prices",
	Args:  cobra.NoArgs,
	RunE:  runState,
}

var stateOffline bool

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().BoolVar(&stateOffline, "offline", false, "do not fetch current prices")
}

func runState(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.engine.Snapshot()
	var prices map[market.Symbol]float64
	if !stateOffline {
		prices = fetchPrices(ctx, a.exchange, snap)
	}
	return printLedger(cmd.OutOrStdout(), snap, prices)
}

// fetchPrices reads tickers for every instrument with open positions in
// parallel. Instruments whose ticker fails are left out.
func fetchPrices(ctx context.Context, md broker.MarketData, g *ledger.GlobalState) map[market.Symbol]float64 {
	var mu sync.Mutex
	prices := make(map[market.Symbol]float64)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for sym, st := range g.Instruments {
		if !st.HasOpen() {
			continue
		}
		eg.Go(func() error {
			p, err := md.LastPrice(ctx, sym)
			if err != nil {
				return nil
			}
			mu.Lock()
			prices[sym] = p
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return prices
}

func printLedger(w io.Writer, g *ledger.GlobalState, prices map[market.Symbol]float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tPOSITION\tORIGIN\tENTRY\tQUANTITY\tUNREALIZED")

	syms := slices.Sorted(maps.Keys(g.Instruments))
	for _, sym := range syms {
		st := g.Instruments[sym]
		for _, p := range st.OpenPositions {
			unrealized := "-"
			if price, ok := prices[sym]; ok {
				unrealized = fmt.Sprintf("%.8f", p.UnrealizedProfit(price))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.8f\t%.8f\t%s\n",
				sym, p.ID, p.Origin, p.EntryPrice, p.Quantity, unrealized)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tOPEN\tHOLDING\tREALIZED")
	for _, sym := range syms {
		st := g.Instruments[sym]
		fmt.Fprintf(tw, "%s\t%d\t%.8f\t%.8f\n", sym, len(st.OpenPositions), st.OpenQuantity(), st.RealizedProfit)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t\t%.8f\n", g.OpenCount(), g.GlobalRealizedProfit)
	return tw.Flush()
}
