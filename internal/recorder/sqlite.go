package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"DipSentinel/internal/model"
)

// SQLiteRecorder persists alert and backtest history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the dashboard can read while the monitor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

// Open returns a SQLite recorder, or a NoopRecorder when dbPath is empty or
// the database cannot be opened.
func Open(dbPath string, log zerolog.Logger) Recorder {
	if dbPath == "" {
		return NewNoopRecorder()
	}
	r, err := NewSQLiteRecorder(dbPath, log)
	if err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("history disabled")
		return NewNoopRecorder()
	}
	return r
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id            TEXT PRIMARY KEY,
			timestamp     INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			market        TEXT,
			price         REAL,
			change_pct    REAL,
			tier          TEXT,
			threshold_pct REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,

		`CREATE TABLE IF NOT EXISTS backtest_results (
			run_id         TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			market         TEXT,
			strategy       TEXT NOT NULL,
			window_label   TEXT,
			purchases      INTEGER,
			total_invested REAL,
			current_value  REAL,
			return_pct     REAL,
			volatility     REAL,
			PRIMARY KEY (run_id, strategy)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_symbol ON backtest_results(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO alerts
		(id, timestamp, symbol, market, price, change_pct, tier, threshold_pct)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.ID, evt.Timestamp.Unix(), evt.Symbol, string(evt.Market),
		evt.Price, evt.Change, evt.Tier.String(), evt.Threshold,
	)
	return err
}

func (r *SQLiteRecorder) RecordBacktest(run *BacktestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, res := range run.Results {
		if res == nil {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO backtest_results
			(run_id, timestamp, symbol, market, strategy, window_label,
			 purchases, total_invested, current_value, return_pct, volatility)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, run.Timestamp.Unix(), run.Symbol, string(run.Market), res.Strategy, res.Window,
			res.Count, res.TotalInvested, res.CurrentValue, res.TotalReturn, res.Volatility,
		); err != nil {
			return fmt.Errorf("insert %s: %w", res.Strategy, err)
		}
	}
	return tx.Commit()
}

// RecentAlerts returns up to limit alerts, newest first.
func (r *SQLiteRecorder) RecentAlerts(limit int) ([]AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id, timestamp, symbol, market, price, change_pct, tier, threshold_pct
		FROM alerts ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertEvent
	for rows.Next() {
		var (
			evt    AlertEvent
			ts     int64
			market string
			tier   string
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Symbol, &market, &evt.Price, &evt.Change, &tier, &evt.Threshold); err != nil {
			return nil, err
		}
		evt.Timestamp = time.Unix(ts, 0)
		evt.Market = model.Market(market)
		if err := evt.Tier.UnmarshalText([]byte(tier)); err != nil {
			r.log.Warn().Err(err).Str("id", evt.ID).Msg("unknown tier in alert history")
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
