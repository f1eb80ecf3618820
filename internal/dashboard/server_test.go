package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/alertstate"
	"DipSentinel/internal/analysis"
	"DipSentinel/internal/backtest"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/model"
	"DipSentinel/internal/monitor"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/watchlist"
)

type env struct {
	srv   *httptest.Server
	store watchlist.Store
	rec   *recorder.SQLiteRecorder
}

func newEnv(t *testing.T, withMonitor bool) *env {
	t.Helper()
	dir := t.TempDir()
	mock := &collector.MockFetcher{Bars: map[string][]model.OHLCV{
		"AAPL":   collector.GenerateBars(150, 600, 20),
		"005930": collector.GenerateBars(70000, 600, 25),
		"TINY":   collector.GenerateBars(10, 4, 0),
		"HOLE":   collector.GenerateBars(80, 400, 0),
	}}
	mock.Bars["HOLE"][len(mock.Bars["HOLE"])-2].Close = 0
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "h.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	store := watchlist.NewCSVStore(filepath.Join(dir, "w.csv"), zerolog.Nop())
	require.NoError(t, store.Save(context.Background(), []watchlist.Entry{
		{Symbol: "AAPL", Name: "Apple", Market: model.MarketInternational},
	}))

	reg := metrics.New()
	an := analysis.New(collector.NewCollector(mock, 5, zerolog.Nop()), rec, reg, analysis.Options{
		Backtest: backtest.Config{
			Amounts: backtest.Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 300},
			DCA:     backtest.DCAOptions{Budget: 6000, Periods: 60, Day: 10},
		},
		Samples: 300,
		Seed:    1,
	}, zerolog.Nop())

	cfg := Config{Log: zerolog.Nop(), Analyzer: an, Store: store, Recorder: rec, Metrics: reg}
	if withMonitor {
		alerts, err := alertstate.NewManager("", zerolog.Nop())
		require.NoError(t, err)
		cfg.Monitor = monitor.New(monitor.Deps{
			Store:    store,
			Analyzer: an,
			Notifier: notifier.LogNotifier{Log: zerolog.Nop()},
			Alerts:   alerts,
			Recorder: rec,
			Metrics:  reg,
		}, monitor.Options{}, zerolog.Nop())
	}

	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store, rec: rec}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, false)

	resp, body := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	e.do(t, http.MethodPost, "/api/backtest", map[string]string{"symbol": "AAPL"})
	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "dipsentinel_backtest_duration_seconds")
}

func TestAnalyze(t *testing.T) {
	e := newEnv(t, false)

	resp, body := e.do(t, http.MethodGet, "/api/analyze/aapl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "US", body["market"])
	assert.Contains(t, body, "stats")
	assert.NotEmpty(t, body["tier_label"])

	resp, body = e.do(t, http.MethodGet, "/api/analyze/005930", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "KR", body["market"])

	resp, body = e.do(t, http.MethodGet, "/api/analyze/TINY?market=us", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, true, body["warning"])

	resp, _ = e.do(t, http.MethodGet, "/api/analyze/NOPE", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/analyze/AAPL?market=mars", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyze_ZeroCloseStillEncodes(t *testing.T) {
	e := newEnv(t, false)

	resp, body := e.do(t, http.MethodGet, "/api/analyze/HOLE?market=US", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HOLE", body["symbol"])
	stats, ok := body["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, stats, "last_change")
}

func TestWatchlistCRUD(t *testing.T) {
	e := newEnv(t, false)

	resp, body := e.do(t, http.MethodPost, "/api/watchlist", map[string]string{"symbol": "005930", "name": "삼성전자"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "KR", body["market"])

	resp, body = e.do(t, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"], 2)

	resp, _ = e.do(t, http.MethodPost, "/api/watchlist", map[string]string{"symbol": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/watchlist", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/watchlist/aapl", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/watchlist/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	entries, err := e.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "005930", entries[0].Symbol)
}

func TestWatchlistRefresh(t *testing.T) {
	t.Run("standalone", func(t *testing.T) {
		e := newEnv(t, false)
		require.NoError(t, watchlist.AddTo(context.Background(), e.store, watchlist.Entry{Symbol: "TINY", Name: "Tiny", Market: model.MarketInternational}))

		resp, body := e.do(t, http.MethodPost, "/api/watchlist/refresh", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1.0, body["refreshed"])
		results := body["results"].([]interface{})
		require.Len(t, results, 2)
		assert.NotEmpty(t, results[1].(map[string]interface{})["error"])
	})

	t.Run("with monitor", func(t *testing.T) {
		e := newEnv(t, true)
		resp, body := e.do(t, http.MethodPost, "/api/watchlist/refresh", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1.0, body["tracked"])

		_, body = e.do(t, http.MethodGet, "/api/watchlist", nil)
		entry := body["entries"].([]interface{})[0].(map[string]interface{})
		assert.Contains(t, entry, "stats")
	})
}

func TestBacktestOptimizeMix(t *testing.T) {
	e := newEnv(t, false)

	resp, body := e.do(t, http.MethodPost, "/api/backtest", map[string]interface{}{
		"symbol":  "AAPL",
		"amounts": map[string]float64{"sigma1": 10, "sigma2": 20, "sigma3": 30},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].(map[string]interface{})
	assert.Contains(t, results, "sigma_full")
	assert.Contains(t, results, "sigma_year")
	assert.Contains(t, results, "dca")
	assert.NotEmpty(t, body["run_id"])

	resp, body = e.do(t, http.MethodPost, "/api/optimize", map[string]interface{}{"symbol": "AAPL", "samples": 100, "seed": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opt := body["optimization"].(map[string]interface{})
	assert.Equal(t, 100.0, opt["samples"])
	weights := opt["weights"].(map[string]interface{})
	var sum float64
	for _, w := range weights {
		sum += w.(float64)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	resp, body = e.do(t, http.MethodPost, "/api/mix", map[string]interface{}{
		"symbol":    "AAPL",
		"weights":   map[string]float64{"sigma_full": 0.3, "sigma_year": 0.3, "dca": 0.4},
		"rebalance": "monthly",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mix := body["mix"].(map[string]interface{})
	assert.Equal(t, "monthly", mix["rebalance"])
	assert.LessOrEqual(t, mix["estimated_drawdown"].(float64), 0.0)

	resp, _ = e.do(t, http.MethodPost, "/api/mix", map[string]interface{}{
		"symbol":  "AAPL",
		"weights": map[string]float64{"sigma_full": 0.3},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/backtest", map[string]interface{}{"market": "US"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/backtest", map[string]interface{}{"symbol": "AAPL", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/backtest", map[string]interface{}{"symbol": "TINY"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAlerts(t *testing.T) {
	e := newEnv(t, false)

	_, body := e.do(t, http.MethodGet, "/api/alerts", nil)
	assert.Empty(t, body["alerts"])

	require.NoError(t, e.rec.RecordAlert(&recorder.AlertEvent{Symbol: "AAPL", Market: model.MarketInternational, Price: 1, Tier: model.TierSigma2}))
	_, body = e.do(t, http.MethodGet, "/api/alerts?limit=5", nil)
	alerts := body["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	assert.Equal(t, "sigma2", alerts[0].(map[string]interface{})["tier"])
}
