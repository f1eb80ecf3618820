package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/model"
)

// seriesFromReturns builds bars whose daily returns are exactly the given
// percentages, starting at 100.
func seriesFromReturns(returns []float64) *model.PriceSeries {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.OHLCV{{Time: start, Open: 100, High: 100, Low: 100, Close: 100}}
	price := 100.0
	for i, r := range returns {
		price *= 1 + r/100
		bars = append(bars, model.OHLCV{
			Time: start.AddDate(0, 0, i+1), Open: price, High: price, Low: price, Close: price,
		})
	}
	return &model.PriceSeries{Symbol: "TEST", Market: model.MarketInternational, Bars: bars, Returns: DailyReturns(bars)}
}

func alternating(n int, a, b float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func TestDailyReturns(t *testing.T) {
	bars := []model.OHLCV{{Close: 100}, {Close: 110}, {Close: 99}}
	r := DailyReturns(bars)
	require.Len(t, r, 3)
	assert.True(t, math.IsNaN(r[0]))
	assert.InDelta(t, 10.0, r[1], 1e-9)
	assert.InDelta(t, -10.0, r[2], 1e-9)
}

func TestCalculateSigma_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name   string
		series *model.PriceSeries
	}{
		{"nil series", nil},
		{"empty series", &model.PriceSeries{}},
		{"nine returns", seriesFromReturns(alternating(9, 1, -1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := CalculateSigma(tt.series)
			assert.ErrorIs(t, err, ErrInsufficientHistory)
			assert.Nil(t, stats)
		})
	}
}

func TestCalculateSigma_ZeroMeanTwoPercentStd(t *testing.T) {
	// Alternating +a/-a over an even count has mean 0; sample std is
	// a*sqrt(n/(n-1)), so pick a to land on exactly 2.
	n := 20
	a := 2 / math.Sqrt(float64(n)/float64(n-1))
	stats, err := CalculateSigma(seriesFromReturns(alternating(n, a, -a)))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, stats.Full.Mean, 1e-9)
	assert.InDelta(t, 2.0, stats.Full.Std, 1e-9)
	assert.InDelta(t, -2.0, stats.Full.Sigma1, 1e-9)
	assert.InDelta(t, -4.0, stats.Full.Sigma2, 1e-9)
	assert.InDelta(t, -6.0, stats.Full.Sigma3, 1e-9)
	assert.Equal(t, n, stats.Observations)
}

func TestCalculateSigma_LevelsAreMonotonic(t *testing.T) {
	returns := []float64{0.3, -1.2, 2.5, -0.4, 0.9, -3.1, 1.1, 0.2, -0.7, 1.8, -2.2, 0.05}
	stats, err := CalculateSigma(seriesFromReturns(returns))
	require.NoError(t, err)

	for _, lv := range []model.SigmaLevels{stats.Full, stats.Year} {
		assert.LessOrEqual(t, lv.Sigma3, lv.Sigma2)
		assert.LessOrEqual(t, lv.Sigma2, lv.Sigma1)
		assert.LessOrEqual(t, lv.Sigma1, lv.Mean)
	}
}

func TestCalculateSigma_YearFallsBackBelowTradingYear(t *testing.T) {
	stats, err := CalculateSigma(seriesFromReturns(alternating(100, 1, -0.5)))
	require.NoError(t, err)
	assert.True(t, stats.YearFallback)
	assert.Equal(t, stats.Full, stats.Year)
}

func TestCalculateSigma_TrailingYearUsesLast252(t *testing.T) {
	// Calm first half, volatile last trading year.
	returns := append(alternating(300, 0.5, -0.5), alternating(TradingYear, 3, -3)...)
	stats, err := CalculateSigma(seriesFromReturns(returns))
	require.NoError(t, err)

	assert.False(t, stats.YearFallback)
	assert.Greater(t, stats.Year.Std, stats.Full.Std)
	assert.InDelta(t, 0.0, stats.Year.Mean, 1e-9)
	assert.InDelta(t, 3*math.Sqrt(float64(TradingYear)/float64(TradingYear-1)), stats.Year.Std, 1e-9)
}

func TestCalculateSigma_LastCloseAndChange(t *testing.T) {
	returns := append(alternating(10, 1, -1), -5)
	series := seriesFromReturns(returns)
	stats, err := CalculateSigma(series)
	require.NoError(t, err)
	assert.Equal(t, series.LastClose(), stats.LastClose)
	assert.InDelta(t, -5.0, stats.LastChange, 1e-9)
}

func TestCalculateSigma_UnpricedPriorCloseGivesZeroChange(t *testing.T) {
	series := seriesFromReturns(alternating(20, 1, -1))
	series.Bars[len(series.Bars)-2].Close = 0
	series.Returns = DailyReturns(series.Bars)

	stats, err := CalculateSigma(series)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.LastChange)
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil))
	assert.Equal(t, 0.0, Volatility([]float64{4}))
	assert.InDelta(t, math.Sqrt(2), Volatility([]float64{1, 3, math.NaN()}), 1e-9)
}

func TestCalculate52WeekRange(t *testing.T) {
	_, err := Calculate52WeekRange(nil)
	assert.Error(t, err)

	bars := []model.OHLCV{
		{High: 110, Low: 90, Close: 100},
		{High: 120, Low: 95, Close: 118},
		{High: 119, Low: 100, Close: 108},
	}
	r, err := Calculate52WeekRange(bars)
	require.NoError(t, err)
	assert.Equal(t, 120.0, r.High)
	assert.Equal(t, 90.0, r.Low)
	assert.InDelta(t, 0.6, r.Position, 1e-9)
	assert.InDelta(t, -10.0, r.FromHighPct, 1e-9)
}

func TestCalculateRSI(t *testing.T) {
	rising := make([]model.OHLCV, 20)
	for i := range rising {
		rising[i].Close = float64(100 + i)
	}
	rsi, err := CalculateRSI(rising, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	rsi, err = CalculateRSI(rising[:5], 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi)
}
