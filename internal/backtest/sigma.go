// Package backtest replays historical prices against the buy-the-dip and
// periodic investment rules and blends their outcomes.
package backtest

import (
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"
)

// Strategy names used as result keys.
const (
	StrategySigmaFull = "sigma_full"
	StrategySigmaYear = "sigma_year"
	StrategyDCA       = "dca"
)

// StrategyOrder is the fixed order used by the weight search and mixing.
var StrategyOrder = []string{StrategySigmaFull, StrategySigmaYear, StrategyDCA}

// Amounts is the fixed amount invested when a day lands in each tier.
type Amounts struct {
	Sigma1 float64 `json:"sigma1" yaml:"sigma1"`
	Sigma2 float64 `json:"sigma2" yaml:"sigma2"`
	Sigma3 float64 `json:"sigma3" yaml:"sigma3"`
}

// For returns the amount for a tier.
func (a Amounts) For(t model.Tier) float64 {
	switch t {
	case model.TierSigma1:
		return a.Sigma1
	case model.TierSigma2:
		return a.Sigma2
	case model.TierSigma3:
		return a.Sigma3
	}
	return 0
}

// SigmaOptions tunes RunSigma.
type SigmaOptions struct {
	Strategy      string
	Window        string
	ExcludeSigma1 bool
}

// RunSigma buys the tier's fixed amount at the close of every day whose
// return breaches a level.
func RunSigma(series *model.PriceSeries, levels model.SigmaLevels, amounts Amounts, opts SigmaOptions) *model.BacktestResult {
	res := newResult(series, opts.Strategy, opts.Window)
	if series == nil || len(series.Bars) < 2 {
		return res
	}
	returns := series.Returns
	if len(returns) != len(series.Bars) {
		returns = calculator.DailyReturns(series.Bars)
	}

	for i := 1; i < len(series.Bars); i++ {
		bar := series.Bars[i]
		tier := strategy.ClassifyExcluding(returns[i], levels, opts.ExcludeSigma1)
		if !tier.Breached() || bar.Close <= 0 {
			continue
		}
		amount := amounts.For(tier)
		if amount <= 0 {
			continue
		}
		res.Purchases = append(res.Purchases, model.Purchase{
			Date:   bar.Time,
			Price:  bar.Close,
			Return: returns[i],
			Tier:   tier,
			Amount: amount,
			Shares: amount / bar.Close,
		})
	}
	finalize(res)
	return res
}

func newResult(series *model.PriceSeries, name, window string) *model.BacktestResult {
	res := &model.BacktestResult{Strategy: name, Window: window, Purchases: []model.Purchase{}}
	if series != nil && len(series.Bars) > 0 {
		res.Start = series.Bars[0].Time
		res.End = series.Bars[len(series.Bars)-1].Time
		res.LastPrice = series.LastClose()
	}
	return res
}

// finalize fills the aggregate fields from the purchase list.
func finalize(res *model.BacktestResult) {
	res.Count = len(res.Purchases)
	eventReturns := make([]float64, 0, len(res.Purchases))
	for _, p := range res.Purchases {
		res.TotalInvested += p.Amount
		res.Shares += p.Shares
		if p.Price > 0 && res.LastPrice > 0 {
			eventReturns = append(eventReturns, (res.LastPrice/p.Price-1)*100)
		}
	}
	if res.Shares > 0 {
		res.AverageCost = res.TotalInvested / res.Shares
	}
	res.CurrentValue = res.Shares * res.LastPrice
	if res.TotalInvested > 0 {
		res.TotalReturn = (res.CurrentValue - res.TotalInvested) / res.TotalInvested * 100
	}
	res.Volatility = calculator.Volatility(eventReturns)
}
