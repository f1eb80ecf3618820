// Package dashboard provides the HTTP JSON API for interactive analysis,
// backtests and watchlist editing.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"DipSentinel/internal/analysis"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/monitor"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/watchlist"
)

// Config holds server dependencies.
type Config struct {
	Log      zerolog.Logger
	Analyzer *analysis.Analyzer
	Store    watchlist.Store
	Monitor  *monitor.Monitor // optional; set when the monitor runs in-process
	Recorder recorder.Recorder
	Metrics  *metrics.Registry
	Port     int
}

// Server represents the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	analyzer *analysis.Analyzer
	store    watchlist.Store
	monitor  *monitor.Monitor
	recorder recorder.Recorder
	metrics  *metrics.Registry
	started  time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		analyzer: cfg.Analyzer,
		store:    cfg.Store,
		monitor:  cfg.Monitor,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
		started:  time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/analyze/{symbol}", s.handleAnalyze)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleListWatchlist)
			r.Post("/", s.handleAddWatchlist)
			r.Post("/refresh", s.handleRefreshWatchlist)
			r.Delete("/{symbol}", s.handleRemoveWatchlist)
		})

		r.Get("/alerts", s.handleAlerts)
		r.Post("/backtest", s.handleBacktest)
		r.Post("/optimize", s.handleOptimize)
		r.Post("/mix", s.handleMix)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
