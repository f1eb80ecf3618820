package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dipsentinel",
		Short: "Sigma-based dip alerts and backtests for a personal watchlist",
		Long: `DipSentinel measures how unusual a day's price drop is against the
symbol's own history (mean - k*std of daily returns), alerts when a watched
symbol breaches 1σ/2σ/3σ, and compares buy-the-dip against monthly
investing.

Examples:
  dipsentinel analyze AAPL
  dipsentinel backtest 005930 --market kr
  dipsentinel watch add AAPL --name Apple
  dipsentinel serve --with-monitor`,
		SilenceUsage: true,
	}

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newMonitorCmd(),
		newAnalyzeCmd(),
		newBacktestCmd(),
		newRefreshCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
