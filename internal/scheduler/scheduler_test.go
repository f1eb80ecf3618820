package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/backtest"
	"DipSentinel/internal/model"
	"DipSentinel/internal/watchlist"
)

type countingRefresher struct{ calls int }

func (c *countingRefresher) RefreshStats(context.Context) (int, error) {
	c.calls++
	return 0, nil
}

type recordingNotifier struct {
	msgs []string
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.msgs = append(r.msgs, text)
	return r.err
}

func newScheduler(t *testing.T) (*Scheduler, *countingRefresher, *recordingNotifier) {
	t.Helper()
	store := watchlist.NewCSVStore(filepath.Join(t.TempDir(), "w.csv"), zerolog.Nop())
	require.NoError(t, store.Save(context.Background(), []watchlist.Entry{
		{Symbol: "005930", Name: "삼성전자", Market: model.MarketDomestic},
		{Symbol: "AAPL", Name: "Apple", Market: model.MarketInternational},
	}))
	ref := &countingRefresher{}
	n := &recordingNotifier{}
	s := NewScheduler(context.Background(), ref, store, n, backtest.DCAOptions{Budget: 600000, Periods: 60}, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC) }
	return s, ref, n
}

func TestRegisterAll(t *testing.T) {
	s, _, _ := newScheduler(t)
	require.NoError(t, s.RegisterAll(DefaultRefreshCron, DefaultDCACron))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _, _ := newScheduler(t)
	require.NoError(t, s2.RegisterAll("", DCASpec(15)))
	assert.Len(t, s2.Cron.Entries(), 1)

	assert.Error(t, s2.RegisterAll("not a spec", ""))
}

func TestRegisterAll_NextRunTimes(t *testing.T) {
	s, _, _ := newScheduler(t)
	require.NoError(t, s.RegisterAll(DefaultRefreshCron, ""))

	// Friday 17:00 -> next refresh is Monday 16:30.
	from := time.Date(2024, 7, 12, 17, 0, 0, 0, time.Local)
	next := s.Cron.Entries()[0].Schedule.Next(from)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 16, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestRunRefreshNow(t *testing.T) {
	s, ref, _ := newScheduler(t)
	s.RunRefreshNow()
	assert.Equal(t, 1, ref.calls)
}

func TestRunDCAReminderNow(t *testing.T) {
	s, _, n := newScheduler(t)
	s.RunDCAReminderNow()
	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0], "2024-07")
	assert.Contains(t, n.msgs[0], "삼성전자 (005930): ₩10,000")
	assert.Contains(t, n.msgs[0], "Apple (AAPL): $10,000")

	// Send failures are logged, not retried.
	n.err = errors.New("down")
	s.RunDCAReminderNow()
	assert.Len(t, n.msgs, 2)
}

func TestDCASpec(t *testing.T) {
	assert.Equal(t, DefaultDCACron, DCASpec(10))
	assert.Equal(t, "0 0 9 25 * *", DCASpec(25))
	assert.Equal(t, DefaultDCACron, DCASpec(0))
}
