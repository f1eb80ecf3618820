package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"DipSentinel/internal/alertstate"
	"DipSentinel/internal/analysis"
	"DipSentinel/internal/backtest"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/config"
	"DipSentinel/internal/logger"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/monitor"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/watchlist"
)

// app holds the wiring shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *metrics.Registry
	recorder recorder.Recorder
	store    watchlist.Store
	analyzer *analysis.Analyzer
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Log.Pretty})

	for _, p := range []string{cfg.Database.SQLitePath, cfg.Watchlist.Path} {
		if p != "" {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	reg := metrics.New()
	col := collector.NewCollector(buildFetcher(cfg, reg), cfg.DataSource.WindowYears, log)
	log.Debug().Str("provider", col.Fetcher.Name()).Msg("data source ready")

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	rec := recorder.Open(cfg.Database.SQLitePath, log)

	an := analysis.New(col, rec, reg, analysis.Options{
		Backtest: backtest.Config{
			Amounts:       cfg.Backtest.Amounts,
			ExcludeSigma1: cfg.Backtest.ExcludeSigma1,
			DCA:           cfg.Backtest.DCA,
		},
		Samples: cfg.Backtest.Samples,
		Seed:    cfg.Backtest.Seed,
	}, log)

	return &app{cfg: cfg, log: log, metrics: reg, recorder: rec, store: store, analyzer: an}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close watchlist store")
	}
	if err := a.recorder.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close recorder")
	}
}

// buildFetcher routes KR symbols to the REST service when configured and
// everything else to Yahoo, each behind its own rate limit and breaker.
func buildFetcher(cfg *config.Config, reg *metrics.Registry) collector.Fetcher {
	yahoo := collector.NewGuard(collector.NewYahooFetcher(cfg.Proxy), cfg.DataSource.RatePerMinute, reg)
	var domestic collector.Fetcher
	if cfg.DataSource.DomesticURL != "" {
		rest := collector.NewRESTFetcher(cfg.DataSource.DomesticURL, cfg.DataSource.DomesticAPIKey, cfg.Proxy)
		domestic = collector.NewGuard(rest, cfg.DataSource.RatePerMinute, reg)
	}
	return collector.NewMarketRouter(domestic, yahoo)
}

func openStore(cfg *config.Config, log zerolog.Logger) (watchlist.Store, error) {
	switch cfg.Watchlist.Backend {
	case "csv":
		return watchlist.NewCSVStore(cfg.Watchlist.Path, log), nil
	default:
		s, err := watchlist.NewSQLiteStore(cfg.Watchlist.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open watchlist: %w", err)
		}
		return s, nil
	}
}

// notifier returns the Telegram notifier, or a log-only stand-in when no
// credentials are configured.
func (a *app) notifier() (notifier.Notifier, *notifier.TelegramNotifier) {
	if err := a.cfg.ValidateTelegram(); err != nil {
		a.log.Warn().Err(err).Msg("notifications go to the log")
		return notifier.LogNotifier{Log: a.log}, nil
	}
	tn := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, a.log)
	return tn, tn
}

func (a *app) newMonitor(n notifier.Notifier) (*monitor.Monitor, error) {
	alerts, err := alertstate.NewManager(a.cfg.Monitor.StateFile, a.log)
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	return monitor.New(monitor.Deps{
		Store:    a.store,
		Analyzer: a.analyzer,
		Notifier: n,
		Alerts:   alerts,
		Recorder: a.recorder,
		Metrics:  a.metrics,
	}, monitor.Options{
		Interval: a.cfg.Monitor.Interval,
		Backoff:  a.cfg.Monitor.Backoff,
		Window:   a.cfg.Monitor.Window,
	}, a.log), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
