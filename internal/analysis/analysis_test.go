package analysis

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/backtest"
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/recorder"
)

type captureRecorder struct {
	recorder.NoopRecorder
	runs []*recorder.BacktestRun
}

func (c *captureRecorder) RecordBacktest(run *recorder.BacktestRun) error {
	c.runs = append(c.runs, run)
	return nil
}

func newAnalyzer(t *testing.T) (*Analyzer, *captureRecorder) {
	t.Helper()
	mock := &collector.MockFetcher{Bars: map[string][]model.OHLCV{
		"AAPL":  collector.GenerateBars(150, 600, 20),
		"SHORT": collector.GenerateBars(150, 5, 0),
	}}
	rec := &captureRecorder{}
	a := New(collector.NewCollector(mock, 5, zerolog.Nop()), rec, nil, Options{
		Backtest: backtest.Config{
			Amounts: backtest.Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 300},
			DCA:     backtest.DCAOptions{Budget: 6000, Periods: 60, Day: 10},
		},
		Samples: 500,
		Seed:    7,
	}, zerolog.Nop())
	return a, rec
}

func TestAnalyze(t *testing.T) {
	a, _ := newAnalyzer(t)

	r, err := a.Analyze(context.Background(), "aapl", model.MarketInternational)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", r.Symbol)
	assert.Equal(t, 599, r.Stats.Observations)
	assert.False(t, r.Stats.YearFallback)
	assert.Less(t, r.Stats.Full.Sigma3, r.Stats.Full.Sigma2)
	assert.Greater(t, r.Range.High, r.Range.Low)
	assert.NotZero(t, r.MA200)
	assert.True(t, r.End.After(r.Start))
}

func TestAnalyze_Errors(t *testing.T) {
	a, _ := newAnalyzer(t)

	_, err := a.Analyze(context.Background(), "SHORT", model.MarketInternational)
	assert.ErrorIs(t, err, calculator.ErrInsufficientHistory)

	_, err = a.Analyze(context.Background(), "NOPE", model.MarketInternational)
	assert.ErrorIs(t, err, collector.ErrNoData)
}

func TestBacktest_RecordsRun(t *testing.T) {
	a, rec := newAnalyzer(t)

	bt, err := a.Backtest(context.Background(), BacktestRequest{Symbol: "AAPL", Market: model.MarketInternational})
	require.NoError(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, bt.RunID, rec.runs[0].ID)
	assert.Len(t, rec.runs[0].Results, 3)

	assert.Greater(t, bt.Suite.SigmaFull.Count, 0)
	assert.Equal(t, 100.0, bt.Suite.DCA.Purchases[0].Amount)
	assert.True(t, bt.Suite.SigmaYear.Start.After(bt.Suite.SigmaFull.Start))
}

func TestBacktest_Overrides(t *testing.T) {
	a, _ := newAnalyzer(t)
	exclude := true

	bt, err := a.Backtest(context.Background(), BacktestRequest{
		Symbol:        "AAPL",
		Market:        model.MarketInternational,
		Amounts:       &backtest.Amounts{Sigma1: 10, Sigma2: 20, Sigma3: 30},
		ExcludeSigma1: &exclude,
		DCA:           &backtest.DCAOptions{Periods: 12},
	})
	require.NoError(t, err)
	assert.True(t, bt.Config.ExcludeSigma1)
	assert.Equal(t, 6000.0, bt.Config.DCA.Budget)
	assert.Equal(t, 12, bt.Config.DCA.Periods)
	assert.Equal(t, 500.0, bt.Suite.DCA.Purchases[0].Amount)
	for _, p := range bt.Suite.SigmaFull.Purchases {
		assert.NotEqual(t, model.TierSigma1, p.Tier)
	}

	_, err = a.Backtest(context.Background(), BacktestRequest{
		Symbol:  "AAPL",
		Market:  model.MarketInternational,
		Amounts: &backtest.Amounts{Sigma1: -1},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOptimize_Deterministic(t *testing.T) {
	a, _ := newAnalyzer(t)
	req := OptimizeRequest{BacktestRequest: BacktestRequest{Symbol: "AAPL", Market: model.MarketInternational}}

	first, err := a.Optimize(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Result.Weights, second.Result.Weights)
	assert.Equal(t, 500, first.Result.Samples)

	var sum float64
	for _, w := range first.Result.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	_, err = a.Optimize(context.Background(), OptimizeRequest{BacktestRequest: req.BacktestRequest, Samples: -5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMix(t *testing.T) {
	a, _ := newAnalyzer(t)
	base := BacktestRequest{Symbol: "AAPL", Market: model.MarketInternational}

	res, err := a.Mix(context.Background(), MixRequest{
		BacktestRequest: base,
		Weights:         map[string]float64{backtest.StrategySigmaFull: 0.5, backtest.StrategyDCA: 0.5},
		Rebalance:       "Quarterly",
	})
	require.NoError(t, err)
	assert.Equal(t, backtest.RebalanceQuarterly, res.Result.Rebalance)
	want := 0.5*res.Backtest.Suite.SigmaFull.TotalReturn + 0.5*res.Backtest.Suite.DCA.TotalReturn
	assert.InDelta(t, want, res.Result.BlendedReturn, 1e-9)

	_, err = a.Mix(context.Background(), MixRequest{BacktestRequest: base, Weights: map[string]float64{backtest.StrategyDCA: 0.4}})
	assert.ErrorIs(t, err, backtest.ErrInvalidWeights)

	_, err = a.Mix(context.Background(), MixRequest{BacktestRequest: base})
	assert.ErrorIs(t, err, backtest.ErrInvalidWeights)

	_, err = a.Mix(context.Background(), MixRequest{BacktestRequest: base, Weights: map[string]float64{backtest.StrategyDCA: 1}, Rebalance: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
