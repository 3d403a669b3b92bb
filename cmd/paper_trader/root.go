package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "paper_trader",
		Short: "Simulated equity and ETF portfolio",
		Long: `paper_trader keeps a simulated cash-plus-positions portfolio.
Trades fill at a given price or the latest daily close, and every change
is recorded in a dated ledger and an append-only trade log.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to an optional YAML config file")

	rootCmd.AddCommand(
		newSetupCmd(opts),
		newTradeCmd(opts, "buy"),
		newTradeCmd(opts, "sell"),
		newResetCmd(opts),
		newUpdateCmd(opts),
		newDashboardCmd(opts),
		newHistoryCmd(opts),
		newAnalyticsCmd(opts),
		newPriceCmd(opts),
		newTradesCmd(opts),
		newShellCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// withApp opens the portfolio for the duration of one command.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), opts.configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
