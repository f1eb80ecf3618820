package collector

import (
	"context"
	"errors"

	"DipSentinel/internal/model"
)

// ErrNoData means the provider returned nothing usable for the symbol.
var ErrNoData = errors.New("market data unavailable")

// Quote is the latest price and the prior session's close.
type Quote struct {
	Price     float64
	PrevClose float64
}

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchDailyBars returns daily bars covering the trailing days calendar
	// days, oldest first.
	FetchDailyBars(ctx context.Context, symbol string, market model.Market, days int) ([]model.OHLCV, error)
	FetchQuote(ctx context.Context, symbol string, market model.Market) (Quote, error)
	Name() string
}

// trimToWindow keeps the bars inside the trailing window measured back from
// the newest bar.
func trimToWindow(bars []model.OHLCV, days int) []model.OHLCV {
	if len(bars) == 0 || days <= 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].Time.AddDate(0, 0, -days)
	for i, b := range bars {
		if !b.Time.Before(cutoff) {
			return bars[i:]
		}
	}
	return bars
}

// quoteFromBars uses the last two closes when a provider has no quote
// endpoint.
func quoteFromBars(bars []model.OHLCV) (Quote, error) {
	if len(bars) < 2 {
		return Quote{}, ErrNoData
	}
	return Quote{Price: bars[len(bars)-1].Close, PrevClose: bars[len(bars)-2].Close}, nil
}

func isNoData(err error) bool { return errors.Is(err, ErrNoData) }
