package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"DipSentinel/internal/analysis"
	"DipSentinel/internal/backtest"
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/strategy"
	"DipSentinel/internal/watchlist"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

type errorResponse struct {
	Error   string `json:"error"`
	Warning bool   `json:"warning,omitempty"`
}

// writeError maps domain errors to status codes. Insufficient history and
// unavailable data are reported as warnings the UI shows inline.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	warning := false
	switch {
	case errors.Is(err, calculator.ErrInsufficientHistory):
		status, warning = http.StatusUnprocessableEntity, true
	case errors.Is(err, collector.ErrNoData):
		status, warning = http.StatusBadGateway, true
	case errors.Is(err, analysis.ErrInvalidRequest),
		errors.Is(err, backtest.ErrInvalidWeights),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, watchlist.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Warning: warning})
}

var errBadRequest = errors.New("bad request")

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// resolveMarket parses an explicit market, or falls back to the watchlist
// entry and finally to the symbol shape.
func (s *Server) resolveMarket(r *http.Request, symbol, market string) (model.Market, error) {
	if market != "" {
		m, err := model.ParseMarket(market)
		if err != nil {
			return "", fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return m, nil
	}
	if entries, err := s.store.Load(r.Context()); err == nil {
		for _, e := range entries {
			if e.Symbol == strings.ToUpper(symbol) {
				return e.Market, nil
			}
		}
	}
	return model.InferMarket(symbol), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"monitor":        s.monitor != nil,
	})
}

type analyzeResponse struct {
	*analysis.Report
	TierLabel     string `json:"tier_label"`
	YearTierLabel string `json:"year_tier_label"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	market, err := s.resolveMarket(r, symbol, r.URL.Query().Get("market"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.analyzer.Analyze(r.Context(), symbol, market)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzeResponse{
		Report:        report,
		TierLabel:     strategy.Info(report.Tier).Label,
		YearTierLabel: strategy.Info(report.YearTier).Label,
	})
}

type watchlistItem struct {
	watchlist.Entry
	Stats *model.SigmaStats `json:"stats,omitempty"`
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats := map[string]*model.SigmaStats{}
	if s.monitor != nil {
		for _, e := range s.monitor.Entries() {
			stats[e.Symbol] = e.Stats
		}
	}
	items := make([]watchlistItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, watchlistItem{Entry: e, Stats: stats[e.Symbol]})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": items})
}

type addRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	market, err := s.resolveMarket(r, req.Symbol, req.Market)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entry, err := watchlist.NewEntry(req.Symbol, req.Name, string(market))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := watchlist.AddTo(r.Context(), s.store, entry); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := watchlist.RemoveFrom(r.Context(), s.store, chi.URLParam(r, "symbol")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshResult struct {
	Symbol string     `json:"symbol"`
	Tier   model.Tier `json:"tier"`
	Error  string     `json:"error,omitempty"`
}

// handleRefreshWatchlist recomputes statistics. With an in-process monitor
// its tracked set is refreshed; otherwise each entry is analysed once.
func (s *Server) handleRefreshWatchlist(w http.ResponseWriter, r *http.Request) {
	if s.monitor != nil {
		if err := s.monitor.Sync(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		n, err := s.monitor.RefreshStats(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"refreshed": n, "tracked": len(s.monitor.Entries())})
		return
	}

	entries, err := s.store.Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	results := make([]refreshResult, 0, len(entries))
	n := 0
	for _, e := range entries {
		res := refreshResult{Symbol: e.Symbol}
		if report, err := s.analyzer.Analyze(r.Context(), e.Symbol, e.Market); err != nil {
			res.Error = err.Error()
		} else {
			res.Tier = report.Tier
			n++
		}
		results = append(results, res)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"refreshed": n, "results": results})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := s.recorder.RecentAlerts(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []recorder.AlertEvent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) normalize(r *http.Request, req *analysis.BacktestRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", errBadRequest)
	}
	m, err := s.resolveMarket(r, req.Symbol, string(req.Market))
	if err != nil {
		return err
	}
	req.Market = m
	return nil
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req analysis.BacktestRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.normalize(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.analyzer.Backtest(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req analysis.OptimizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.normalize(r, &req.BacktestRequest); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.analyzer.Optimize(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	var req analysis.MixRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.normalize(r, &req.BacktestRequest); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.analyzer.Mix(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
