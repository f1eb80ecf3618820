// Package monitor runs the background loop that watches the watchlist for
// daily drops past the sigma levels and sends notifications.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"DipSentinel/internal/alertstate"
	"DipSentinel/internal/analysis"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/strategy"
	"DipSentinel/internal/watchlist"
)

// Defaults for Options.
const (
	DefaultInterval = 5 * time.Minute
	DefaultBackoff  = time.Minute
)

// Options tune the loop.
type Options struct {
	Interval time.Duration
	Backoff  time.Duration
	Window   model.Window
}

// Monitor owns the in-memory set of tracked symbols and their statistics.
type Monitor struct {
	store    watchlist.Store
	analyzer *analysis.Analyzer
	notifier notifier.Notifier
	alerts   *alertstate.Manager
	recorder recorder.Recorder
	metrics  *metrics.Registry
	opts     Options
	log      zerolog.Logger

	// OnStats, when set, is called after each stats computation.
	OnStats func(symbol string, err error)

	mu      sync.RWMutex
	tracked map[string]*model.WatchEntry
}

// Deps groups the collaborators of a Monitor.
type Deps struct {
	Store    watchlist.Store
	Analyzer *analysis.Analyzer
	Notifier notifier.Notifier
	Alerts   *alertstate.Manager
	Recorder recorder.Recorder
	Metrics  *metrics.Registry
}

// New creates a Monitor. Recorder and Metrics may be nil.
func New(d Deps, opts Options, log zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Window == "" {
		opts.Window = model.WindowFull
	}
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	return &Monitor{
		store:    d.Store,
		analyzer: d.Analyzer,
		notifier: d.Notifier,
		alerts:   d.Alerts,
		recorder: d.Recorder,
		metrics:  d.Metrics,
		opts:     opts,
		log:      log.With().Str("component", "monitor").Logger(),
		tracked:  make(map[string]*model.WatchEntry),
	}
}

// Run blocks until ctx is cancelled, running a cycle every Interval, or
// after Backoff when a cycle fails.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.opts.Interval).Str("window", string(m.opts.Window)).Msg("monitor started")
	for {
		wait := m.opts.Interval
		if err := m.Cycle(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Dur("retry_in", m.opts.Backoff).Msg("monitor cycle failed")
			wait = m.opts.Backoff
		}

		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// Cycle syncs the watchlist and checks every tracked symbol once.
func (m *Monitor) Cycle(ctx context.Context) error {
	err := m.cycle(ctx)
	m.metrics.ObserveCycle(err)
	return err
}

func (m *Monitor) cycle(ctx context.Context) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}
	for _, e := range m.Entries() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.check(ctx, e); err != nil {
			m.log.Warn().Err(err).Str("symbol", e.Symbol).Msg("check skipped")
		}
	}
	return nil
}

// Sync reloads the watchlist, computes statistics for new symbols and drops
// removed ones. A symbol whose statistics fail stays untracked until a
// later sync succeeds.
func (m *Monitor) Sync(ctx context.Context) error {
	stored, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	m.mu.RLock()
	current := make(map[string]model.Market, len(m.tracked))
	for s, e := range m.tracked {
		current[s] = e.Market
	}
	m.mu.RUnlock()

	added, removed := watchlist.Diff(stored, current)
	for _, s := range removed {
		m.mu.Lock()
		delete(m.tracked, s)
		m.mu.Unlock()
		m.alerts.Forget(s)
		m.log.Info().Str("symbol", s).Msg("symbol removed from monitoring")
	}
	for _, e := range added {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := &model.WatchEntry{Symbol: e.Symbol, Name: e.Name, Market: e.Market}
		if err := m.computeStats(ctx, entry); err != nil {
			continue
		}
		m.mu.Lock()
		m.tracked[e.Symbol] = entry
		m.mu.Unlock()
		m.log.Info().Str("symbol", e.Symbol).Msg("symbol added to monitoring")
	}

	// Names can be edited without re-adding the symbol.
	m.mu.Lock()
	for _, e := range stored {
		if t, ok := m.tracked[e.Symbol]; ok {
			t.Name = e.Name
		}
	}
	size := len(m.tracked)
	m.mu.Unlock()
	m.metrics.SetWatchlistSize(size)
	return nil
}

func (m *Monitor) computeStats(ctx context.Context, e *model.WatchEntry) error {
	r, err := m.analyzer.Analyze(ctx, e.Symbol, e.Market)
	if m.OnStats != nil {
		m.OnStats(e.Symbol, err)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("symbol", e.Symbol).Msg("failed to compute statistics")
		return err
	}
	m.mu.Lock()
	e.Stats = r.Stats
	e.Series = r.Series
	m.mu.Unlock()
	return nil
}

// RefreshStats recomputes statistics for every tracked symbol. Symbols that
// fail keep their previous statistics. Returns the number refreshed.
func (m *Monitor) RefreshStats(ctx context.Context) (int, error) {
	m.mu.RLock()
	entries := make([]*model.WatchEntry, 0, len(m.tracked))
	for _, e := range m.tracked {
		entries = append(entries, e)
	}
	m.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })

	n := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err := m.computeStats(ctx, e); err == nil {
			n++
		}
	}
	m.log.Info().Int("refreshed", n).Int("tracked", len(entries)).Msg("statistics refreshed")
	return n, nil
}

// Entries returns a copy of the tracked symbols sorted by symbol.
func (m *Monitor) Entries() []model.WatchEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.WatchEntry, 0, len(m.tracked))
	for _, e := range m.tracked {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// check compares the current quote with the symbol's levels and sends a
// notification for a new breach.
func (m *Monitor) check(ctx context.Context, e model.WatchEntry) error {
	if e.Stats == nil {
		return nil
	}
	q, change, err := m.analyzer.Collector().Quote(ctx, e.Symbol, e.Market)
	if err != nil {
		return err
	}

	levels := e.Stats.Levels(m.opts.Window)
	tier := strategy.Classify(change, levels)
	if !tier.Breached() || !m.alerts.ShouldNotify(e.Symbol, q.Price, tier) {
		return nil
	}

	msg := notifier.FormatAlert(notifier.Alert{
		Symbol: e.Symbol,
		Name:   e.Name,
		Market: e.Market,
		Price:  q.Price,
		Change: change,
		Tier:   tier,
		Levels: levels,
		Window: m.opts.Window,
	})
	if err := m.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	m.alerts.MarkSent(e.Symbol, q.Price, tier)
	m.metrics.ObserveAlert(tier.String())
	m.log.Info().Str("symbol", e.Symbol).Str("tier", tier.String()).Float64("change", change).Msg("alert sent")

	if err := m.recorder.RecordAlert(&recorder.AlertEvent{
		Symbol:    e.Symbol,
		Market:    e.Market,
		Price:     q.Price,
		Change:    change,
		Tier:      tier,
		Threshold: strategy.Level(levels, tier),
	}); err != nil {
		m.log.Warn().Err(err).Str("symbol", e.Symbol).Msg("failed to record alert")
	}
	return nil
}
