package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X ...cmd.version=v1.2.3".
var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the scalper CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scalper version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "An RSI scalping engine for spot crypto markets")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
