package calculator

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"DipSentinel/internal/model"
)

const (
	// MinObservations is the fewest finite returns statistics are computed from.
	MinObservations = 10
	// TradingYear is the trailing sub-window length in trading days.
	TradingYear = 252
)

// ErrInsufficientHistory means the series is too short to produce statistics.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Levels computes mean, sample standard deviation and the three downside
// levels of the given returns.
func Levels(returns []float64) (model.SigmaLevels, error) {
	values := finite(returns)
	if len(values) < MinObservations {
		return model.SigmaLevels{}, ErrInsufficientHistory
	}
	mean, std := stat.MeanStdDev(values, nil)
	return model.SigmaLevels{
		Mean:   mean,
		Std:    std,
		Sigma1: mean - std,
		Sigma2: mean - 2*std,
		Sigma3: mean - 3*std,
	}, nil
}

// CalculateSigma derives full-window and trailing-year statistics from a
// series. Returns ErrInsufficientHistory for empty or short input.
func CalculateSigma(series *model.PriceSeries) (*model.SigmaStats, error) {
	if series == nil || len(series.Bars) == 0 {
		return nil, ErrInsufficientHistory
	}
	returns := series.Returns
	if len(returns) != len(series.Bars) {
		returns = DailyReturns(series.Bars)
	}

	full, err := Levels(returns)
	if err != nil {
		return nil, err
	}

	stats := &model.SigmaStats{
		Full:         full,
		Year:         full,
		YearFallback: true,
		Observations: len(finite(returns)),
		LastClose:    series.LastClose(),
		LastChange:   returns[len(returns)-1],
	}
	if math.IsNaN(stats.LastChange) || math.IsInf(stats.LastChange, 0) {
		stats.LastChange = 0
	}

	// Returns[0] is always NaN, so a full trading year needs one extra bar.
	if len(returns)-1 >= TradingYear {
		if year, err := Levels(returns[len(returns)-TradingYear:]); err == nil {
			stats.Year = year
			stats.YearFallback = false
		}
	}
	return stats, nil
}

// Volatility is the sample standard deviation of the finite values, 0 when
// fewer than two exist.
func Volatility(values []float64) float64 {
	v := finite(values)
	if len(v) < 2 {
		return 0
	}
	return stat.StdDev(v, nil)
}
