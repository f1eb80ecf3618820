package watchlist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var csvHeader = []string{"symbol", "name", "market"}

// CSVStore keeps the watchlist in a spreadsheet-compatible CSV file.
type CSVStore struct {
	path string
	log  zerolog.Logger
}

// NewCSVStore uses path; the file is created on first Save.
func NewCSVStore(path string, log zerolog.Logger) *CSVStore {
	return &CSVStore{path: path, log: log.With().Str("component", "watchlist").Logger()}
}

// Load reads the file. A missing file is an empty watchlist; rows with
// missing fields are skipped.
func (s *CSVStore) Load(_ context.Context) ([]Entry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []Entry
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read watchlist line %d: %w", line, err)
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimPrefix(rec[0], "\ufeff"), "symbol") {
			continue
		}
		if len(rec) < 3 {
			s.log.Warn().Int("line", line).Msg("skipping watchlist row with missing fields")
			continue
		}
		e, err := NewEntry(rec[0], rec[1], rec[2])
		if err != nil {
			s.log.Warn().Err(err).Int("line", line).Msg("skipping malformed watchlist row")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Save writes a temp file next to the target and renames it into place.
func (s *CSVStore) Save(_ context.Context, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create watchlist dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".watchlist-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(csvHeader)
	for _, e := range entries {
		_ = w.Write([]string{e.Symbol, e.Name, string(e.Market)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write watchlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *CSVStore) Close() error { return nil }
