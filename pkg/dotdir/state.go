package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

const (
	stateFile = "derive.json"
)

// DeriveState records the last dashboard derivation.
type DeriveState struct {
	// Key is the selection key (project and time range) that was derived.
	Key string `json:"key"`

	// Generation is the tracker generation of the applied derivation. It
	// keeps increasing across runs.
	Generation uint64 `json:"generation"`

	// GeneratedAt is when the dashboard was derived.
	GeneratedAt time.Time `json:"generatedAt"`

	// Degraded lists the widgets that could not be built.
	Degraded []string `json:"degraded,omitempty"`
}

// LoadDeriveState loads the derive state from a target .insights/derive.json.
// Returns nil, nil if nothing has been derived yet.
// If overrideDir is non-empty, it is used instead of the default .insights/ location.
func (m *Manager) LoadDeriveState(overrideDir string) (*DeriveState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading derive state: %w", err)
	}

	state := &DeriveState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing derive state: %w", err)
	}

	return state, nil
}

// SaveDeriveState persists the derive state to a target .insights/derive.json.
func (m *Manager) SaveDeriveState(state *DeriveState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil derive state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling derive state: %w", err)
	}

	path := filepath.Join(dir, stateFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing derive state: %w", err)
	}

	return nil
}

// ClearDeriveState removes the derive state file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearDeriveState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, stateFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing derive state: %w", err)
	}

	return nil
}
