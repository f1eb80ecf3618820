// Package analysis ties data collection to the statistics, backtest and
// weight-search engines. The dashboard, the CLI and the Telegram commands
// all go through it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DipSentinel/internal/backtest"
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/model"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/strategy"
)

// Periods used for the supplementary indicators.
const (
	MAPeriod  = 200
	RSIPeriod = 14
)

// Options are the defaults applied when a request leaves a field empty.
type Options struct {
	Backtest backtest.Config
	Samples  int
	Seed     uint64
}

// Analyzer runs analyses against live data.
type Analyzer struct {
	collector *collector.Collector
	recorder  recorder.Recorder
	metrics   *metrics.Registry
	opts      Options
	log       zerolog.Logger
}

// New creates an Analyzer. rec and m may be nil.
func New(c *collector.Collector, rec recorder.Recorder, m *metrics.Registry, opts Options, log zerolog.Logger) *Analyzer {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.Samples <= 0 {
		opts.Samples = backtest.DefaultSamples
	}
	return &Analyzer{
		collector: c,
		recorder:  rec,
		metrics:   m,
		opts:      opts,
		log:       log.With().Str("component", "analysis").Logger(),
	}
}

// Collector exposes the underlying collector for quote lookups.
func (a *Analyzer) Collector() *collector.Collector { return a.collector }

// Report is the per-symbol analysis view.
type Report struct {
	Symbol      string                `json:"symbol"`
	Market      model.Market          `json:"market"`
	Stats       *model.SigmaStats     `json:"stats"`
	Tier        model.Tier            `json:"tier"`
	YearTier    model.Tier            `json:"year_tier"`
	Range       calculator.PriceRange `json:"range_52w"`
	MA200       float64               `json:"ma200,omitempty"`
	MADeviation float64               `json:"ma200_deviation_pct,omitempty"`
	RSI         float64               `json:"rsi"`
	Start       time.Time             `json:"start"`
	End         time.Time             `json:"end"`
	Series      *model.PriceSeries    `json:"-"`
}

// Analyze collects the window for symbol and computes its sigma levels,
// the tier of the latest daily change against both windows, and the
// supplementary indicators.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, market model.Market) (*Report, error) {
	series, err := a.collector.Collect(ctx, symbol, market)
	if err != nil {
		return nil, err
	}
	return a.report(series)
}

func (a *Analyzer) report(series *model.PriceSeries) (*Report, error) {
	stats, err := calculator.CalculateSigma(series)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", series.Symbol, err)
	}
	r := &Report{
		Symbol:   series.Symbol,
		Market:   series.Market,
		Stats:    stats,
		Tier:     strategy.Classify(stats.LastChange, stats.Full),
		YearTier: strategy.Classify(stats.LastChange, stats.Year),
		Start:    series.Bars[0].Time,
		End:      series.Bars[len(series.Bars)-1].Time,
		Series:   series,
	}
	if rng, err := calculator.Calculate52WeekRange(series.Bars); err == nil {
		r.Range = rng
	}
	if ma, dev, err := calculator.MADeviation(series.Bars, MAPeriod); err == nil {
		r.MA200, r.MADeviation = ma, dev
	}
	if rsi, err := calculator.CalculateRSI(series.Bars, RSIPeriod); err == nil {
		r.RSI = rsi
	}
	return r, nil
}

// BacktestRequest selects a symbol and optionally overrides the configured
// amounts and periodic plan.
type BacktestRequest struct {
	Symbol        string               `json:"symbol"`
	Market        model.Market         `json:"market"`
	Amounts       *backtest.Amounts    `json:"amounts,omitempty"`
	ExcludeSigma1 *bool                `json:"exclude_sigma1,omitempty"`
	DCA           *backtest.DCAOptions `json:"dca,omitempty"`
}

// ErrInvalidRequest is returned for out-of-range request parameters.
var ErrInvalidRequest = errors.New("invalid request")

func (a *Analyzer) config(req BacktestRequest) (backtest.Config, error) {
	cfg := a.opts.Backtest
	if req.Amounts != nil {
		cfg.Amounts = *req.Amounts
	}
	if req.ExcludeSigma1 != nil {
		cfg.ExcludeSigma1 = *req.ExcludeSigma1
	}
	if req.DCA != nil {
		d := *req.DCA
		if d.Budget == 0 {
			d.Budget = cfg.DCA.Budget
		}
		if d.Periods == 0 {
			d.Periods = cfg.DCA.Periods
		}
		if d.Day == 0 {
			d.Day = cfg.DCA.Day
		}
		cfg.DCA = d
	}

	if cfg.Amounts.Sigma1 < 0 || cfg.Amounts.Sigma2 < 0 || cfg.Amounts.Sigma3 < 0 {
		return cfg, fmt.Errorf("%w: amounts must not be negative", ErrInvalidRequest)
	}
	if cfg.DCA.Budget < 0 || cfg.DCA.Periods < 0 {
		return cfg, fmt.Errorf("%w: dca budget and periods must not be negative", ErrInvalidRequest)
	}
	if cfg.DCA.Day < 0 || cfg.DCA.Day > 31 {
		return cfg, fmt.Errorf("%w: dca day %d out of range", ErrInvalidRequest, cfg.DCA.Day)
	}
	return cfg, nil
}

// BacktestReport is a suite run together with the analysis it was based on.
type BacktestReport struct {
	RunID  string          `json:"run_id"`
	Report *Report         `json:"report"`
	Config backtest.Config `json:"config"`
	Suite  *backtest.Suite `json:"results"`
}

// Backtest analyzes the symbol, runs the three strategies and records the run.
func (a *Analyzer) Backtest(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	cfg, err := a.config(req)
	if err != nil {
		return nil, err
	}
	report, err := a.Analyze(ctx, req.Symbol, req.Market)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	suite := backtest.RunSuite(report.Series, report.Stats, cfg)
	a.metrics.ObserveBacktest("suite", started)

	run := &recorder.BacktestRun{
		ID:      uuid.NewString(),
		Symbol:  report.Symbol,
		Market:  report.Market,
		Results: suite.Results(),
	}
	if err := a.recorder.RecordBacktest(run); err != nil {
		a.log.Warn().Err(err).Str("symbol", report.Symbol).Msg("failed to record backtest")
	}
	return &BacktestReport{RunID: run.ID, Report: report, Config: cfg, Suite: suite}, nil
}

// OptimizeRequest adds search parameters to a backtest request.
type OptimizeRequest struct {
	BacktestRequest
	Samples int    `json:"samples,omitempty"`
	Seed    uint64 `json:"seed,omitempty"`
}

// OptimizeReport is the best weight vector found for a backtest.
type OptimizeReport struct {
	Backtest *BacktestReport          `json:"backtest"`
	Result   *backtest.OptimizeResult `json:"optimization"`
}

// MaxSamples bounds request-supplied sample counts.
const MaxSamples = 200000

// Optimize backtests the symbol and searches for the best weights.
func (a *Analyzer) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeReport, error) {
	samples := req.Samples
	if samples == 0 {
		samples = a.opts.Samples
	}
	if samples < 0 || samples > MaxSamples {
		return nil, fmt.Errorf("%w: samples must be between 1 and %d", ErrInvalidRequest, MaxSamples)
	}
	seed := req.Seed
	if seed == 0 {
		seed = a.opts.Seed
	}

	bt, err := a.Backtest(ctx, req.BacktestRequest)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	res, err := backtest.Optimize(bt.Suite.Inputs(), samples, backtest.NewSource(seed))
	a.metrics.ObserveBacktest("optimize", started)
	if err != nil {
		return nil, err
	}
	return &OptimizeReport{Backtest: bt, Result: res}, nil
}

// MixRequest adds user weights to a backtest request.
type MixRequest struct {
	BacktestRequest
	Weights   map[string]float64 `json:"weights"`
	Rebalance string             `json:"rebalance,omitempty"`
}

// MixReport is the blended evaluation for a backtest.
type MixReport struct {
	Backtest *BacktestReport     `json:"backtest"`
	Result   *backtest.MixResult `json:"mix"`
}

// Mix backtests the symbol and blends the results with the given weights.
func (a *Analyzer) Mix(ctx context.Context, req MixRequest) (*MixReport, error) {
	rebalance, err := backtest.ParseRebalance(strings.ToLower(req.Rebalance))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(req.Weights) == 0 {
		return nil, fmt.Errorf("%w: no weights given", backtest.ErrInvalidWeights)
	}
	for name, w := range req.Weights {
		if math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: %s weight is infinite", backtest.ErrInvalidWeights, name)
		}
	}

	bt, err := a.Backtest(ctx, req.BacktestRequest)
	if err != nil {
		return nil, err
	}
	res, err := backtest.Mix(bt.Suite, req.Weights, rebalance)
	if err != nil {
		return nil, err
	}
	return &MixReport{Backtest: bt, Result: res}, nil
}
