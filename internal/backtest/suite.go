package backtest

import (
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

// Config bundles the inputs of a full backtest run.
type Config struct {
	Amounts       Amounts    `json:"amounts" yaml:"amounts"`
	ExcludeSigma1 bool       `json:"exclude_sigma1" yaml:"exclude_sigma1"`
	DCA           DCAOptions `json:"dca" yaml:"dca"`
}

// Suite holds one result per strategy.
type Suite struct {
	SigmaFull *model.BacktestResult `json:"sigma_full"`
	SigmaYear *model.BacktestResult `json:"sigma_year"`
	DCA       *model.BacktestResult `json:"dca"`
}

// ByName returns the result for a strategy key.
func (s *Suite) ByName(name string) *model.BacktestResult {
	switch name {
	case StrategySigmaFull:
		return s.SigmaFull
	case StrategySigmaYear:
		return s.SigmaYear
	case StrategyDCA:
		return s.DCA
	}
	return nil
}

// Results returns the results in StrategyOrder.
func (s *Suite) Results() []*model.BacktestResult {
	out := make([]*model.BacktestResult, 0, len(StrategyOrder))
	for _, name := range StrategyOrder {
		out = append(out, s.ByName(name))
	}
	return out
}

// RunSuite runs the sigma strategy over the whole series with full-window
// levels and over the trailing trading year with trailing-year levels, plus
// the periodic strategy over the whole series.
func RunSuite(series *model.PriceSeries, stats *model.SigmaStats, cfg Config) *Suite {
	year := series.Tail(calculator.TradingYear + 1)
	return &Suite{
		SigmaFull: RunSigma(series, stats.Full, cfg.Amounts, SigmaOptions{
			Strategy: StrategySigmaFull, Window: "full", ExcludeSigma1: cfg.ExcludeSigma1,
		}),
		SigmaYear: RunSigma(year, stats.Year, cfg.Amounts, SigmaOptions{
			Strategy: StrategySigmaYear, Window: "1y", ExcludeSigma1: cfg.ExcludeSigma1,
		}),
		DCA: RunDCA(series, cfg.DCA),
	}
}

// Inputs converts the suite into weight-search inputs.
func (s *Suite) Inputs() []StrategyInput {
	out := make([]StrategyInput, 0, len(StrategyOrder))
	for _, r := range s.Results() {
		out = append(out, StrategyInput{Name: r.Strategy, Return: r.TotalReturn, Volatility: r.Volatility})
	}
	return out
}
