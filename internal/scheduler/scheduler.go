// Package scheduler runs the calendar jobs: the after-close statistics
// refresh and the monthly periodic-purchase reminder.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"DipSentinel/internal/backtest"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/watchlist"
)

// Default cron specs (with seconds).
const (
	DefaultRefreshCron = "0 30 16 * * 1-5"
	DefaultDCACron     = "0 0 9 10 * *"
)

// Refresher recomputes statistics for the monitored symbols.
type Refresher interface {
	RefreshStats(ctx context.Context) (int, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Store     watchlist.Store
	Notifier  notifier.Notifier
	DCA       backtest.DCAOptions
	Ctx       context.Context

	log zerolog.Logger
	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r Refresher, store watchlist.Store, n notifier.Notifier, dca backtest.DCAOptions, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Refresher: r,
		Store:     store,
		Notifier:  n,
		DCA:       dca,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// RegisterAll registers the refresh and DCA reminder tasks. An empty spec
// disables that task.
func (s *Scheduler) RegisterAll(refreshCron, dcaCron string) error {
	if refreshCron != "" {
		if _, err := s.Cron.AddFunc(refreshCron, s.RunRefreshNow); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if dcaCron != "" {
		if _, err := s.Cron.AddFunc(dcaCron, s.RunDCAReminderNow); err != nil {
			return fmt.Errorf("register dca reminder: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunRefreshNow recomputes statistics immediately.
func (s *Scheduler) RunRefreshNow() {
	s.log.Info().Msg("running statistics refresh")
	n, err := s.Refresher.RefreshStats(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Int("refreshed", n).Msg("statistics refresh interrupted")
	}
}

// RunDCAReminderNow sends the periodic purchase reminder immediately.
func (s *Scheduler) RunDCAReminderNow() {
	s.log.Info().Msg("sending dca reminder")
	entries, err := s.Store.Load(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("dca reminder: load watchlist")
		return
	}
	msg := notifier.FormatDCAReminder(entries, s.DCA.PerPeriod(), s.now())
	if err := s.Notifier.Send(s.Ctx, msg); err != nil {
		s.log.Error().Err(err).Msg("send dca reminder")
	}
}

// DCASpec builds the reminder cron spec for a day of the month.
func DCASpec(day int) string {
	if day <= 0 || day > 31 {
		day = backtest.DefaultDCADay
	}
	return fmt.Sprintf("0 0 9 %d * *", day)
}
