package alertstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"DipSentinel/internal/model"
)

// State is the on-disk shape of the dedupe table.
type State struct {
	Alerts    map[string]model.AlertState `json:"alerts"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// LoadState reads the alert state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Alerts: map[string]model.AlertState{}}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Alerts == nil {
		state.Alerts = map[string]model.AlertState{}
	}
	return &state, nil
}

// SaveState writes the alert state to a JSON file.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
