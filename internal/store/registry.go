package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"royale-monitor/internal/domain"
)

const registryFile = "monitored_players.json"

func (s *Store) registryPath() string {
	return filepath.Join(s.dir, registryFile)
}

// LoadRegistry reads the monitored-accounts registry, keyed by normalized
// player tag. A missing file yields an empty registry.
func (s *Store) LoadRegistry() (map[string]*domain.MonitorState, error) {
	data, err := os.ReadFile(s.registryPath())
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*domain.MonitorState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var registry map[string]*domain.MonitorState
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	if registry == nil {
		registry = map[string]*domain.MonitorState{}
	}
	return registry, nil
}

func (s *Store) SaveRegistry(registry map[string]*domain.MonitorState) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(s.registryPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	s.logger.Debug().Int("accounts", len(registry)).Msg("registry saved")
	return nil
}
