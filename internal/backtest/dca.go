package backtest

import (
	"DipSentinel/internal/model"
)

// DefaultDCADay is the day of month on or after which the periodic purchase
// is made.
const DefaultDCADay = 10

// DCAOptions configures the periodic strategy.
type DCAOptions struct {
	Budget  float64 `json:"budget" yaml:"budget"`
	Periods int     `json:"periods" yaml:"periods"`
	Day     int     `json:"day" yaml:"day"`
}

// PerPeriod is the amount invested in each period.
func (o DCAOptions) PerPeriod() float64 {
	if o.Periods <= 0 {
		return 0
	}
	return o.Budget / float64(o.Periods)
}

// RunDCA invests Budget/Periods on the first trading day at or after the
// configured day of each calendar month until Periods purchases are made.
func RunDCA(series *model.PriceSeries, opts DCAOptions) *model.BacktestResult {
	res := newResult(series, StrategyDCA, "")
	if series == nil || opts.Periods <= 0 || opts.Budget <= 0 {
		return res
	}
	day := opts.Day
	if day <= 0 {
		day = DefaultDCADay
	}
	amount := opts.PerPeriod()

	lastKey := -1
	for _, bar := range series.Bars {
		if len(res.Purchases) >= opts.Periods {
			break
		}
		key := bar.Time.Year()*100 + int(bar.Time.Month())
		if key == lastKey || bar.Time.Day() < day || bar.Close <= 0 {
			continue
		}
		lastKey = key
		res.Purchases = append(res.Purchases, model.Purchase{
			Date:   bar.Time,
			Price:  bar.Close,
			Tier:   model.TierNormal,
			Amount: amount,
			Shares: amount / bar.Close,
		})
	}
	finalize(res)
	return res
}
