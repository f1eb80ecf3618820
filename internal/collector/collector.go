package collector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

// DefaultWindowYears is the trailing history analysed by default.
const DefaultWindowYears = 5

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Bars   map[string][]model.OHLCV
	Quotes map[string]Quote
	Errs   map[string]error
	Calls  int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, _ model.Market, days int) ([]model.OHLCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := m.Errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := m.Bars[symbol]
	if !ok {
		return nil, ErrNoData
	}
	return trimToWindow(bars, days), nil
}

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string, _ model.Market) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := m.Errs[symbol]; err != nil {
		return Quote{}, err
	}
	if q, ok := m.Quotes[symbol]; ok {
		return q, nil
	}
	return quoteFromBars(m.Bars[symbol])
}

// SetQuote replaces the quote returned for symbol.
func (m *MockFetcher) SetQuote(symbol string, q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Quotes == nil {
		m.Quotes = make(map[string]Quote)
	}
	m.Quotes[symbol] = q
}

// GenerateBars produces count synthetic daily bars ending today, drifting
// gently around basePrice with a dip every step days.
func GenerateBars(basePrice float64, count, step int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	p := basePrice
	for i := 0; i < count; i++ {
		switch {
		case step > 0 && i > 0 && i%step == 0:
			p *= 0.95
		case i%2 == 0:
			p *= 1.006
		default:
			p *= 0.996
		}
		bars[i] = model.OHLCV{
			Time:   time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector fetches price history and derives the return column.
type Collector struct {
	Fetcher    Fetcher
	WindowDays int
	log        zerolog.Logger
}

// NewCollector creates a new Collector covering windowYears of history.
func NewCollector(fetcher Fetcher, windowYears int, log zerolog.Logger) *Collector {
	if windowYears <= 0 {
		windowYears = DefaultWindowYears
	}
	return &Collector{
		Fetcher:    fetcher,
		WindowDays: windowYears * 365,
		log:        log.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches the trailing window for one symbol.
func (c *Collector) Collect(ctx context.Context, symbol string, market model.Market) (*model.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, market, c.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", symbol, wrapNoData(err))
	}
	bars = pricedBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("collect %s: %w", symbol, ErrNoData)
	}
	c.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Str("provider", c.Fetcher.Name()).Msg("collected price history")
	return &model.PriceSeries{
		Symbol:    symbol,
		Market:    market,
		Bars:      bars,
		Returns:   calculator.DailyReturns(bars),
		FetchedAt: time.Now(),
	}, nil
}

// pricedBars drops bars without a positive close, the same rows the Yahoo
// parser skips, so no provider feeds a -100% return into the statistics.
func pricedBars(bars []model.OHLCV) []model.OHLCV {
	out := bars[:0:0]
	for _, b := range bars {
		if b.Close > 0 && !math.IsInf(b.Close, 0) {
			out = append(out, b)
		}
	}
	return out
}

// Quote fetches the current price and the percentage change from the prior close.
func (c *Collector) Quote(ctx context.Context, symbol string, market model.Market) (Quote, float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q, err := c.Fetcher.FetchQuote(ctx, symbol, market)
	if err != nil {
		return Quote{}, 0, fmt.Errorf("quote %s: %w", symbol, wrapNoData(err))
	}
	return q, calculator.PercentChange(q.Price, q.PrevClose), nil
}

// wrapNoData marks any provider failure as data-unavailable while keeping
// the original error in the chain.
func wrapNoData(err error) error {
	if err == nil || isNoData(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNoData, err)
}
