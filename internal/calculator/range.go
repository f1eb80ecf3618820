package calculator

import (
	"errors"
	"math"

	"DipSentinel/internal/model"
)

// PriceRange is the trailing high/low and where the last close sits in it.
type PriceRange struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Position    float64 `json:"position"`      // 0.0 ~ 1.0
	FromHighPct float64 `json:"from_high_pct"` // <= 0
}

// Calculate52WeekRange scans the most recent trading year of bars.
func Calculate52WeekRange(bars []model.OHLCV) (PriceRange, error) {
	if len(bars) == 0 {
		return PriceRange{}, errors.New("no daily bars provided")
	}
	start := len(bars) - TradingYear
	if start < 0 {
		start = 0
	}
	r := PriceRange{High: math.Inf(-1), Low: math.Inf(1)}
	for _, b := range bars[start:] {
		r.High = math.Max(r.High, b.High)
		r.Low = math.Min(r.Low, b.Low)
	}

	last := bars[len(bars)-1].Close
	switch {
	case r.High == r.Low:
		r.Position = 0.5
	default:
		r.Position = math.Min(1, math.Max(0, (last-r.Low)/(r.High-r.Low)))
	}
	if r.High > 0 {
		r.FromHighPct = math.Min(0, (last/r.High-1)*100)
	}
	return r, nil
}
