package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var liquidateCmd = &cobra.Command{
	Use:   "liquidate",
	Short: "Sell every open position at market",
	Long: `Emergency liquidation sells the whole free base balance of every
instrument that has open positions and clears those positions from the
ledger. Realized profit is not updated. Instruments whose sell fails keep
their positions.

Requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runLiquidate,
}

var liquidateYes bool

func init() {
	rootCmd.AddCommand(liquidateCmd)

	liquidateCmd.Flags().BoolVar(&liquidateYes, "yes", false, "confirm the liquidation")
}

func runLiquidate(cmd *cobra.Command, args []string) error {
	if !liquidateYes {
		return errors.New("refusing to liquidate without --yes")
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.engine.Liquidate(ctx)
	if err != nil {
		return fmt.Errorf("liquidate: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "✗ %-12s %v\n", r.Instrument, r.Err)
			continue
		}
		fmt.Fprintf(out, "✓ %-12s sold %.8f, cleared %d position(s)\n", r.Instrument, r.Sold, r.Cleared)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no open positions")
	}
	if failed > 0 {
		return fmt.Errorf("%d instrument(s) could not be liquidated", failed)
	}
	return nil
}
