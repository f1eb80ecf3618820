package calculator

import (
	"errors"

	"DipSentinel/internal/model"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}

// MADeviation returns the last close's percentage distance from its
// period-day moving average.
func MADeviation(bars []model.OHLCV, period int) (ma, deviation float64, err error) {
	closes := extractCloses(bars)
	ma, err = CalculateSMA(closes, period)
	if err != nil {
		return 0, 0, err
	}
	if ma == 0 {
		return 0, 0, errors.New("moving average is zero")
	}
	return ma, (closes[len(closes)-1]/ma - 1) * 100, nil
}
