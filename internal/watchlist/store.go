// Package watchlist persists the monitored symbol table. Stores are read
// and written wholesale: Save replaces the whole table.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"DipSentinel/internal/model"
)

// ErrNotFound is returned when removing a symbol that is not listed.
var ErrNotFound = errors.New("symbol not in watchlist")

// Entry is one persisted row.
type Entry struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Market model.Market `json:"market"`
}

// Store loads and saves the full watchlist.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// NewEntry normalises and validates a row.
func NewEntry(symbol, name, market string) (Entry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Entry{}, errors.New("symbol is required")
	}
	m, err := model.ParseMarket(market)
	if err != nil {
		return Entry{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = symbol
	}
	return Entry{Symbol: symbol, Name: name, Market: m}, nil
}

// Add returns entries with e added, replacing any row with the same symbol.
func Add(entries []Entry, e Entry) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	replaced := false
	for _, x := range entries {
		if x.Symbol == e.Symbol {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, x)
	}
	if !replaced {
		out = append(out, e)
	}
	return out
}

// Remove returns entries without symbol.
func Remove(entries []Entry, symbol string) ([]Entry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	out := make([]Entry, 0, len(entries))
	for _, x := range entries {
		if x.Symbol != symbol {
			out = append(out, x)
		}
	}
	if len(out) == len(entries) {
		return entries, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return out, nil
}

// Diff compares the stored list against the symbols currently tracked and
// returns the set differences, sorted. A symbol whose market changed is
// reported as both removed and added.
func Diff(stored []Entry, tracked map[string]model.Market) (added []Entry, removed []string) {
	seen := make(map[string]model.Market, len(stored))
	for _, e := range stored {
		seen[e.Symbol] = e.Market
		if m, ok := tracked[e.Symbol]; !ok || m != e.Market {
			added = append(added, e)
		}
	}
	for s, m := range tracked {
		if sm, ok := seen[s]; !ok || sm != m {
			removed = append(removed, s)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Symbol < added[j].Symbol })
	sort.Strings(removed)
	return added, removed
}

// AddTo loads, adds and saves in one step.
func AddTo(ctx context.Context, s Store, e Entry) error {
	entries, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, Add(entries, e))
}

// RemoveFrom loads, removes and saves in one step.
func RemoveFrom(ctx context.Context, s Store, symbol string) error {
	entries, err := s.Load(ctx)
	if err != nil {
		return err
	}
	entries, err = Remove(entries, symbol)
	if err != nil {
		return err
	}
	return s.Save(ctx, entries)
}
