package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/strategy"
)

func newRefreshCmd() *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute statistics for every watched symbol and show their tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			w := a.cfg.Monitor.Window
			if window != "" {
				w = model.Window(window)
			}
			if w != model.WindowFull && w != model.WindowYear {
				return fmt.Errorf("unknown window %q", window)
			}

			entries, err := a.store.Load(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Watchlist is empty. Add symbols with `dipsentinel watch add`.")
				return nil
			}

			mon, err := a.newMonitor(notifier.LogNotifier{Log: a.log})
			if err != nil {
				return err
			}
			bar := progressbar.NewOptions(len(entries),
				progressbar.OptionSetDescription("fetching"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionClearOnFinish(),
			)
			var failed []string
			mon.OnStats = func(symbol string, err error) {
				if err != nil {
					failed = append(failed, symbol)
				}
				_ = bar.Add(1)
			}
			if err := mon.Sync(ctx); err != nil {
				return err
			}
			_ = bar.Finish()

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Symbol", "Name", "Close", "Change", "1σ", "2σ", "3σ", "Tier"}),
			)
			for _, e := range mon.Entries() {
				if e.Stats == nil {
					continue
				}
				levels := e.Stats.Levels(w)
				info := strategy.Info(strategy.Classify(e.Stats.LastChange, levels))
				table.Append([]string{
					e.Symbol,
					e.Name,
					notifier.FormatAmount(e.Stats.LastClose, e.Market),
					pct(e.Stats.LastChange),
					pct(levels.Sigma1),
					pct(levels.Sigma2),
					pct(levels.Sigma3),
					info.Emoji + " " + info.Label,
				})
			}
			table.Render()

			if len(failed) > 0 {
				fmt.Printf("\n%d symbol(s) failed: %v\n", len(failed), failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "full or year (default from config)")
	return cmd
}
