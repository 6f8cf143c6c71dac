package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Adopt untracked exchange balances into the ledger",
	Long: `For every configured instrument with no open positions, a free base
balance above risk.dust_threshold becomes one RECONCILED position entered at
the current ticker price. Instruments with open positions are not touched.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.engine.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "adopted %d position(s)\n", n)
	return printLedger(cmd.OutOrStdout(), a.engine.Snapshot(), nil)
}
