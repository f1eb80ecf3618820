package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"DipSentinel/internal/analysis"
	"DipSentinel/internal/backtest"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/strategy"
)

// resolveMarket prefers the flag, then the watchlist entry, then the
// symbol shape.
func (a *app) resolveMarket(ctx context.Context, symbol, flag string) (model.Market, error) {
	if flag != "" {
		return model.ParseMarket(flag)
	}
	if entries, err := a.store.Load(ctx); err == nil {
		for _, e := range entries {
			if e.Symbol == strings.ToUpper(symbol) {
				return e.Market, nil
			}
		}
	}
	return model.InferMarket(symbol), nil
}

func pct(v float64) string { return fmt.Sprintf("%+.2f%%", v) }

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd() *cobra.Command {
	var (
		market string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Show sigma levels and the current tier for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			m, err := a.resolveMarket(ctx, args[0], market)
			if err != nil {
				return err
			}
			r, err := a.analyzer.Analyze(ctx, args[0], m)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(r)
			}
			printReport(r)
			return nil
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "KR or US (default: watchlist entry or guessed from the symbol)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printReport(r *analysis.Report) {
	s := r.Stats
	fmt.Printf("%s (%s)  %s ~ %s, %d daily returns\n\n",
		r.Symbol, r.Market, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), s.Observations)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Window", "Mean", "Std", "1σ", "2σ", "3σ"}),
	)
	yearLabel := "1y"
	if s.YearFallback {
		yearLabel = "1y (full)"
	}
	for _, row := range []struct {
		label string
		l     model.SigmaLevels
	}{{"full", s.Full}, {yearLabel, s.Year}} {
		table.Append([]string{row.label, pct(row.l.Mean), fmt.Sprintf("%.2f%%", row.l.Std), pct(row.l.Sigma1), pct(row.l.Sigma2), pct(row.l.Sigma3)})
	}
	table.Render()

	fmt.Println()
	fmt.Printf("Last close: %s (%s)\n", notifier.FormatAmount(s.LastClose, r.Market), pct(s.LastChange))
	fmt.Printf("Tier:       %s %s (1y: %s)\n", strategy.Info(r.Tier).Emoji, strategy.Info(r.Tier).Label, strategy.Info(r.YearTier).Label)
	if r.Range.High > 0 {
		fmt.Printf("52w range:  %s - %s (%.1f%% from high)\n",
			notifier.FormatAmount(r.Range.Low, r.Market), notifier.FormatAmount(r.Range.High, r.Market), r.Range.FromHighPct)
	}
	if r.MA200 > 0 {
		fmt.Printf("MA200:      %s (%s)\n", notifier.FormatAmount(r.MA200, r.Market), pct(r.MADeviation))
	}
	fmt.Printf("RSI(14):    %.1f\n", r.RSI)
}

func newBacktestCmd() *cobra.Command {
	var (
		market    string
		exclude   bool
		samples   int
		seed      uint64
		mix       string
		rebalance string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "backtest SYMBOL",
		Short: "Compare buy-the-dip against monthly investing and search for the best blend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			m, err := a.resolveMarket(ctx, args[0], market)
			if err != nil {
				return err
			}
			req := analysis.OptimizeRequest{
				BacktestRequest: analysis.BacktestRequest{Symbol: args[0], Market: m},
				Samples:         samples,
				Seed:            seed,
			}
			if cmd.Flags().Changed("exclude-sigma1") {
				req.ExcludeSigma1 = &exclude
			}

			opt, err := a.analyzer.Optimize(ctx, req)
			if err != nil {
				return err
			}

			var mixed *analysis.MixReport
			if mix != "" {
				weights, err := parseWeights(mix)
				if err != nil {
					return err
				}
				mixed, err = a.analyzer.Mix(ctx, analysis.MixRequest{
					BacktestRequest: req.BacktestRequest,
					Weights:         weights,
					Rebalance:       rebalance,
				})
				if err != nil {
					return err
				}
			}

			if asJSON {
				out := map[string]interface{}{"backtest": opt.Backtest, "optimization": opt.Result}
				if mixed != nil {
					out["mix"] = mixed.Result
				}
				return printJSON(out)
			}
			printBacktest(opt.Backtest, m)
			printOptimization(opt.Result)
			if mixed != nil {
				printMix(mixed.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "KR or US")
	cmd.Flags().BoolVar(&exclude, "exclude-sigma1", false, "only buy on 2σ and 3σ days")
	cmd.Flags().IntVar(&samples, "samples", 0, "weight vectors to draw (default from config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = time based)")
	cmd.Flags().StringVar(&mix, "mix", "", "evaluate a blend, e.g. sigma_full=0.3,sigma_year=0.3,dca=0.4")
	cmd.Flags().StringVar(&rebalance, "rebalance", "none", "none, monthly, quarterly or yearly")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

func parseWeights(s string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("weight %q: expected name=value", part)
		}
		w, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", part, err)
		}
		out[strings.TrimSpace(name)] = w
	}
	return out, nil
}

func printBacktest(bt *analysis.BacktestReport, m model.Market) {
	fmt.Printf("%s (%s) backtest\n\n", bt.Report.Symbol, m)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Strategy", "Window", "Buys", "Invested", "Value", "Avg Cost", "Return", "Volatility"}),
	)
	for _, r := range bt.Suite.Results() {
		if r == nil {
			continue
		}
		table.Append([]string{
			r.Strategy,
			r.Window,
			strconv.Itoa(r.Count),
			notifier.FormatAmount(r.TotalInvested, m),
			notifier.FormatAmount(r.CurrentValue, m),
			notifier.FormatAmount(r.AverageCost, m),
			pct(r.TotalReturn),
			fmt.Sprintf("%.2f", r.Volatility),
		})
	}
	table.Render()
}

func printOptimization(res *backtest.OptimizeResult) {
	fmt.Printf("\nBest of %d random blends (return/volatility %.3f)\n\n", res.Samples, res.Best.Score)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Strategy", "Weight"}),
	)
	names := make([]string, 0, len(res.Weights))
	for name := range res.Weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return res.Weights[names[i]] > res.Weights[names[j]] })
	for _, name := range names {
		table.Append([]string{name, fmt.Sprintf("%.1f%%", res.Weights[name]*100)})
	}
	table.Render()
	fmt.Printf("Expected return %s, volatility %.2f\n", pct(res.Best.Return), res.Best.Volatility)
}

func printMix(res *backtest.MixResult) {
	fmt.Printf("\nMixed strategy (rebalance: %s)\n\n", res.Rebalance)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Strategy", "Weight", "Return", "Contribution"}),
	)
	for _, c := range res.Contributions {
		table.Append([]string{c.Strategy, fmt.Sprintf("%.1f%%", c.Weight*100), pct(c.Return), pct(c.Contribution)})
	}
	table.Render()
	fmt.Printf("Blended return %s, rough drawdown estimate %s\n", pct(res.BlendedReturn), pct(res.EstimatedDrawdown))
}
