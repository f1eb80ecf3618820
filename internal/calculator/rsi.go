package calculator

import (
	"errors"

	"DipSentinel/internal/model"
)

// CalculateRSI computes the Wilder-smoothed RSI over the given period.
// Returns 50 when fewer than period+1 bars are available.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 50, nil
	}
	closes := extractCloses(bars)

	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		gain, loss := 0.0, 0.0
		if d := closes[i] - closes[i-1]; d > 0 {
			gain = d
		} else {
			loss = -d
		}
		if i <= period {
			avgGain += gain / float64(period)
			avgLoss += loss / float64(period)
			continue
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}
