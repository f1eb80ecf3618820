package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

var levels = model.SigmaLevels{Mean: 0, Std: 2, Sigma1: -2, Sigma2: -4, Sigma3: -6}

// seriesFromCloses builds one bar per calendar day starting at start.
func seriesFromCloses(start time.Time, closes ...float64) *model.PriceSeries {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return &model.PriceSeries{Symbol: "TEST", Bars: bars, Returns: calculator.DailyReturns(bars)}
}

func TestRunSigma_TierTwoAndThreeEvents(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// 100 -> 95 (-5%, sigma2) -> 95.95 (+1%) -> 89.233... (-7%, sigma3) -> 90
	s := seriesFromCloses(start, 100, 95, 95.95, 95.95*0.93, 90)
	amounts := Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 200}

	res := RunSigma(s, levels, amounts, SigmaOptions{Strategy: StrategySigmaFull})

	require.Equal(t, 2, res.Count)
	assert.Equal(t, model.TierSigma2, res.Purchases[0].Tier)
	assert.Equal(t, model.TierSigma3, res.Purchases[1].Tier)
	assert.Equal(t, 400.0, res.TotalInvested)

	wantShares := 200/95.0 + 200/(95.95*0.93)
	assert.InDelta(t, wantShares, res.Shares, 1e-9)
	assert.InDelta(t, 400/wantShares, res.AverageCost, 1e-9)
	assert.Equal(t, 90.0, res.LastPrice)
	assert.InDelta(t, wantShares*90, res.CurrentValue, 1e-9)
	assert.InDelta(t, (wantShares*90-400)/400*100, res.TotalReturn, 1e-9)
	assert.Greater(t, res.Volatility, 0.0)
}

func TestRunSigma_TotalInvestedMatchesEventCount(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := seriesFromCloses(start, 100, 97, 99, 96, 100, 93, 94, 90, 91)
	amounts := Amounts{Sigma1: 50, Sigma2: 50, Sigma3: 50}

	res := RunSigma(s, levels, amounts, SigmaOptions{})
	assert.Equal(t, float64(res.Count)*50, res.TotalInvested)
}

func TestRunSigma_ExcludeSigma1(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// -3% is sigma1 only, -5% is sigma2.
	s := seriesFromCloses(start, 100, 97, 97*0.95)
	amounts := Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 300}

	all := RunSigma(s, levels, amounts, SigmaOptions{})
	assert.Equal(t, 2, all.Count)

	excl := RunSigma(s, levels, amounts, SigmaOptions{ExcludeSigma1: true})
	require.Equal(t, 1, excl.Count)
	assert.Equal(t, model.TierSigma2, excl.Purchases[0].Tier)
	assert.Equal(t, 200.0, excl.TotalInvested)
}

func TestRunSigma_NoEvents(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := seriesFromCloses(start, 100, 101, 102)
	res := RunSigma(s, levels, Amounts{Sigma1: 1, Sigma2: 1, Sigma3: 1}, SigmaOptions{})
	assert.Zero(t, res.Count)
	assert.Zero(t, res.TotalInvested)
	assert.Zero(t, res.AverageCost)
	assert.Zero(t, res.TotalReturn)
	assert.NotNil(t, res.Purchases)

	assert.Zero(t, RunSigma(nil, levels, Amounts{}, SigmaOptions{}).Count)
}

func TestRunDCA_BuysOnFirstTradingDayFromTenth(t *testing.T) {
	var bars []model.OHLCV
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		// Skip weekends and the 10th of February to force a later day.
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		if day.Month() == time.February && day.Day() == 10 {
			continue
		}
		bars = append(bars, model.OHLCV{Time: day, Close: price})
		price += 0.5
	}
	s := &model.PriceSeries{Bars: bars, Returns: calculator.DailyReturns(bars)}

	res := RunDCA(s, DCAOptions{Budget: 1200, Periods: 4, Day: 10})
	require.Equal(t, 4, res.Count)
	assert.Equal(t, 4*(1200.0/4), res.TotalInvested)

	for _, p := range res.Purchases {
		assert.GreaterOrEqual(t, p.Date.Day(), 10)
		assert.Equal(t, 300.0, p.Amount)
	}
	// 2024-01-10 is a Wednesday; Feb 10 is a Saturday and so is skipped anyway.
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), res.Purchases[0].Date)
	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), res.Purchases[1].Date)
	assert.Equal(t, time.April, res.Purchases[3].Date.Month())
}

func TestRunDCA_StopsWhenSeriesEnds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 45)
	for i := range closes {
		closes[i] = 10
	}
	s := seriesFromCloses(start, closes...)

	res := RunDCA(s, DCAOptions{Budget: 1000, Periods: 10})
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 200.0, res.TotalInvested)
	assert.InDelta(t, 0.0, res.TotalReturn, 1e-12)

	assert.Zero(t, RunDCA(s, DCAOptions{Budget: 1000}).Count)
}

func TestRunSuite(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 400)
	p := 100.0
	for i := range closes {
		switch {
		case i%37 == 0:
			p *= 0.94
		case i%2 == 0:
			p *= 1.011
		default:
			p *= 0.992
		}
		closes[i] = p
	}
	s := seriesFromCloses(start, closes...)
	stats, err := calculator.CalculateSigma(s)
	require.NoError(t, err)

	suite := RunSuite(s, stats, Config{
		Amounts: Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 300},
		DCA:     DCAOptions{Budget: 1200, Periods: 12},
	})

	require.Len(t, suite.Results(), 3)
	assert.Equal(t, StrategySigmaFull, suite.SigmaFull.Strategy)
	assert.Equal(t, StrategySigmaYear, suite.SigmaYear.Strategy)
	assert.Equal(t, StrategyDCA, suite.DCA.Strategy)
	assert.Equal(t, s.Bars[len(s.Bars)-calculator.TradingYear-1].Time, suite.SigmaYear.Start)
	assert.Equal(t, 12, suite.DCA.Count)
	assert.Greater(t, suite.SigmaFull.Count, 0)
	assert.Len(t, suite.Inputs(), 3)
}
