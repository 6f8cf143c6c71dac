package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scalper",
	Short: "An RSI scalping engine for spot crypto markets",
	Long: `Scalper polls recent closes for a set of spot instruments, opens long
positions when the RSI crosses up through the buy level and closes them on
stop-loss, take-profit or an RSI crossing down through the sell level.

It provides tools for:
  - Running the polling engine against Binance or a paper exchange
  - Adopting untracked balances into the ledger
  - Emergency liquidation of every open position
  - Inspecting the ledger and the trade journal`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML, JSON or TOML); defaults plus SCALPER_* env when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}
