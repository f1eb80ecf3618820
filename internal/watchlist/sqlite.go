package watchlist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the watchlist in a SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database and the watchlist table.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS watchlist (
		position INTEGER NOT NULL,
		symbol   TEXT,
		name     TEXT,
		market   TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create watchlist table: %w", err)
	}
	return &SQLiteStore{db: db, log: log.With().Str("component", "watchlist").Logger()}, nil
}

// Load reads every row; malformed rows are skipped with a warning.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, name, market FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var symbol, name, market sql.NullString
		if err := rows.Scan(&symbol, &name, &market); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		e, err := NewEntry(symbol.String, name.String, market.String)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol.String).Msg("skipping malformed watchlist row")
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist`); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO watchlist (position, symbol, name, market) VALUES (?,?,?,?)`,
			i, e.Symbol, e.Name, string(e.Market),
		); err != nil {
			return fmt.Errorf("insert %s: %w", e.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
