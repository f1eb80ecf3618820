// Package metrics holds the Prometheus collectors shared by the fetchers,
// the monitor loop and the dashboard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every DipSentinel metric. A nil *Registry is valid and
// records nothing, which keeps tests and the CLI free of metric wiring.
type Registry struct {
	reg *prometheus.Registry

	FetchTotal       *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	MonitorCycles    *prometheus.CounterVec
	BacktestDuration *prometheus.HistogramVec
	WatchlistSize    prometheus.Gauge
}

// New creates and registers all collectors on a private registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipsentinel_fetch_total",
				Help: "Market data requests by provider and result",
			},
			[]string{"provider", "result"},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipsentinel_alerts_sent_total",
				Help: "Threshold notifications sent by tier",
			},
			[]string{"tier"},
		),
		MonitorCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipsentinel_monitor_cycles_total",
				Help: "Background monitor cycles by result",
			},
			[]string{"result"},
		),
		BacktestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dipsentinel_backtest_duration_seconds",
				Help:    "Time spent in backtest and weight search runs",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),
		WatchlistSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dipsentinel_watchlist_size",
				Help: "Number of symbols the monitor is tracking",
			},
		),
	}
	r.reg.MustRegister(
		r.FetchTotal,
		r.AlertsSent,
		r.MonitorCycles,
		r.BacktestDuration,
		r.WatchlistSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveFetch(provider string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.FetchTotal.WithLabelValues(provider, result).Inc()
}

func (r *Registry) ObserveAlert(tier string) {
	if r == nil {
		return
	}
	r.AlertsSent.WithLabelValues(tier).Inc()
}

func (r *Registry) ObserveCycle(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.MonitorCycles.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveBacktest(kind string, started time.Time) {
	if r == nil {
		return
	}
	r.BacktestDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (r *Registry) SetWatchlistSize(n int) {
	if r == nil {
		return
	}
	r.WatchlistSize.Set(float64(n))
}
