package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"DipSentinel/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted market data service
// exposing daily bars and quotes as JSON.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of one daily bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type restQuote struct {
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, market model.Market, days int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("market", string(market))
	q.Set("days", fmt.Sprint(days))

	var raw []restBar
	if err := f.get(ctx, "/api/v1/bars/daily?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("rest %s: %w", symbol, ErrNoData)
	}

	bars := make([]model.OHLCV, len(raw))
	for i, rb := range raw {
		bars[i] = model.OHLCV{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trimToWindow(bars, days), nil
}

func (f *RESTFetcher) FetchQuote(ctx context.Context, symbol string, market model.Market) (Quote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("market", string(market))

	var rq restQuote
	if err := f.get(ctx, "/api/v1/quote?"+q.Encode(), &rq); err != nil {
		return Quote{}, fmt.Errorf("fetch quote: %w", err)
	}
	if rq.Price <= 0 || rq.PrevClose <= 0 {
		return Quote{}, fmt.Errorf("rest %s: %w", symbol, ErrNoData)
	}
	return Quote{Price: rq.Price, PrevClose: rq.PrevClose}, nil
}

func (f *RESTFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
