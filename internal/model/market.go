package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Market classifies where a symbol trades.
type Market string

const (
	MarketDomestic      Market = "KR"
	MarketInternational Market = "US"
)

// ParseMarket accepts the stored code as well as the long names used in
// spreadsheets.
func ParseMarket(s string) (Market, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kr", "domestic", "국내":
		return MarketDomestic, nil
	case "us", "international", "해외":
		return MarketInternational, nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

// CurrencySymbol returns the symbol used when formatting amounts.
func (m Market) CurrencySymbol() string {
	if m == MarketDomestic {
		return "₩"
	}
	return "$"
}

// AmountDigits is the number of decimals shown for amounts in this market.
func (m Market) AmountDigits() int {
	if m == MarketDomestic {
		return 0
	}
	return 2
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds daily bars for one symbol plus the derived percentage
// return column. Returns[0] is NaN.
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Market    Market    `json:"market"`
	Bars      []OHLCV   `json:"bars"`
	Returns   []float64 `json:"-"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// LastClose returns the most recent close, or 0 for an empty series.
func (s *PriceSeries) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Tail returns a view over the last n bars. Returns are re-based so the
// first return of the view is NaN, like a freshly fetched series.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= len(s.Bars) {
		return s
	}
	start := len(s.Bars) - n
	out := &PriceSeries{
		Symbol:    s.Symbol,
		Market:    s.Market,
		Bars:      s.Bars[start:],
		FetchedAt: s.FetchedAt,
	}
	if len(s.Returns) == len(s.Bars) {
		out.Returns = make([]float64, n)
		copy(out.Returns, s.Returns[start:])
		if n > 0 {
			out.Returns[0] = math.NaN()
		}
	}
	return out
}

// InferMarket guesses the market from the symbol shape: six-digit codes and
// .KS/.KQ tickers are domestic, everything else international.
func InferMarket(symbol string) Market {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, ".KS") || strings.HasSuffix(s, ".KQ") {
		return MarketDomestic
	}
	if len(s) != 6 {
		return MarketInternational
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return MarketInternational
		}
	}
	return MarketDomestic
}
