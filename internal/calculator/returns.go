package calculator

import (
	"math"

	"DipSentinel/internal/model"
)

// DailyReturns converts closes into percentage changes from the prior close.
// The first element has no prior close and is NaN, as is any day whose
// prior close is not positive.
func DailyReturns(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		if i == 0 || bars[i-1].Close <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (bars[i].Close/bars[i-1].Close - 1) * 100
	}
	return out
}

// PercentChange returns (price/prev - 1) * 100, or NaN when prev is not positive.
func PercentChange(price, prev float64) float64 {
	if prev <= 0 {
		return math.NaN()
	}
	return (price/prev - 1) * 100
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
