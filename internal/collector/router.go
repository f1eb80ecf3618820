package collector

import (
	"context"
	"fmt"

	"DipSentinel/internal/model"
)

// MarketRouter sends each request to the fetcher serving the symbol's market.
type MarketRouter struct {
	Domestic      Fetcher
	International Fetcher
}

// NewMarketRouter routes domestic symbols to domestic and everything else
// to international. A nil domestic fetcher falls back to international.
func NewMarketRouter(domestic, international Fetcher) *MarketRouter {
	if domestic == nil {
		domestic = international
	}
	return &MarketRouter{Domestic: domestic, International: international}
}

func (r *MarketRouter) Name() string {
	if r.Domestic == r.International {
		return r.International.Name()
	}
	return fmt.Sprintf("%s+%s", r.Domestic.Name(), r.International.Name())
}

func (r *MarketRouter) pick(market model.Market) Fetcher {
	if market == model.MarketDomestic {
		return r.Domestic
	}
	return r.International
}

func (r *MarketRouter) FetchDailyBars(ctx context.Context, symbol string, market model.Market, days int) ([]model.OHLCV, error) {
	return r.pick(market).FetchDailyBars(ctx, symbol, market, days)
}

func (r *MarketRouter) FetchQuote(ctx context.Context, symbol string, market model.Market) (Quote, error) {
	return r.pick(market).FetchQuote(ctx, symbol, market)
}
