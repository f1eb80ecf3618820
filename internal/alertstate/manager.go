// Package alertstate remembers the last alert sent per symbol so that an
// unchanged price and tier is not reported twice.
package alertstate

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"DipSentinel/internal/model"
)

// Manager guards the dedupe table. An empty filePath keeps state in memory only.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	log      zerolog.Logger
}

// NewManager creates a Manager, loading state from disk.
func NewManager(filePath string, log zerolog.Logger) (*Manager, error) {
	state := &State{Alerts: map[string]model.AlertState{}}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, err
		}
	}
	return &Manager{
		state:    state,
		filePath: filePath,
		log:      log.With().Str("component", "alertstate").Logger(),
	}, nil
}

// ShouldNotify reports whether (price, tier) differs from the last alert
// sent for symbol.
func (m *Manager) ShouldNotify(symbol string, price float64, tier model.Tier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.state.Alerts[symbol]
	if !ok {
		return true
	}
	return last.Price != price || last.Tier != tier
}

// MarkSent records that an alert for (price, tier) went out.
func (m *Manager) MarkSent(symbol string, price float64, tier model.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Alerts[symbol] = model.AlertState{Price: price, Tier: tier, SentAt: time.Now()}
	m.save()
}

// Forget drops the entry for a symbol that left the watchlist.
func (m *Manager) Forget(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Alerts[symbol]; !ok {
		return
	}
	delete(m.state.Alerts, symbol)
	m.save()
}

// Snapshot returns a copy of the current table.
func (m *Manager) Snapshot() map[string]model.AlertState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.AlertState, len(m.state.Alerts))
	for k, v := range m.state.Alerts {
		out[k] = v
	}
	return out
}

func (m *Manager) save() {
	if m.filePath == "" {
		return
	}
	if err := SaveState(m.filePath, m.state); err != nil {
		m.log.Error().Err(err).Str("path", m.filePath).Msg("failed to save alert state")
	}
}
