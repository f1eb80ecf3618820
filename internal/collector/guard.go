package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"DipSentinel/internal/metrics"
	"DipSentinel/internal/model"
)

// Guard wraps a provider with a token-bucket rate limit and a circuit
// breaker. A missing symbol does not count as a provider failure.
type Guard struct {
	next    Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// NewGuard limits next to perMinute requests and opens the breaker after
// three consecutive failures for one minute.
func NewGuard(next Fetcher, perMinute int, m *metrics.Registry) *Guard {
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	st := gobreaker.Settings{
		Name:     next.Name(),
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled)
		},
	}
	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		metrics: m,
	}
}

func (g *Guard) Name() string { return g.next.Name() }

// State reports the breaker state, for status pages.
func (g *Guard) State() string { return g.breaker.State().String() }

func (g *Guard) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s circuit %v: %w", g.next.Name(), err, ErrNoData)
	}
	g.metrics.ObserveFetch(g.next.Name(), err)
	return v, err
}

func (g *Guard) FetchDailyBars(ctx context.Context, symbol string, market model.Market, days int) ([]model.OHLCV, error) {
	v, err := g.do(ctx, func() (interface{}, error) {
		return g.next.FetchDailyBars(ctx, symbol, market, days)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.OHLCV), nil
}

func (g *Guard) FetchQuote(ctx context.Context, symbol string, market model.Market) (Quote, error) {
	v, err := g.do(ctx, func() (interface{}, error) {
		return g.next.FetchQuote(ctx, symbol, market)
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}
