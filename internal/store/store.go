package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"royale-monitor/internal/battlelog"
	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
)

const monitoringDir = "monitoring"

// Store persists account battle histories and the monitored-accounts
// registry as JSON files under the data directory. It does no locking of
// its own; callers serialize writes per account.
type Store struct {
	dir    string
	logger zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, monitoringDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("dir", cfg.DataDir).Msg("data directory ready")
	return &Store{dir: cfg.DataDir, logger: logger}, nil
}

func (s *Store) accountPath(tag string) string {
	name := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	return filepath.Join(s.dir, monitoringDir, name+".json")
}

// LoadAccount reads the persisted record for tag. A missing file is not an
// error; it yields an empty record so first ingest and first read behave
// the same.
func (s *Store) LoadAccount(tag string) (*domain.AccountRecord, error) {
	data, err := os.ReadFile(s.accountPath(tag))
	if errors.Is(err, os.ErrNotExist) {
		return emptyRecord(tag), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account record: %w", err)
	}

	var rec domain.AccountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode account record: %w", err)
	}
	if rec.Opponents == nil {
		rec.Opponents = map[string]*domain.OpponentRecord{}
	}
	return &rec, nil
}

func (s *Store) SaveAccount(rec *domain.AccountRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account record: %w", err)
	}
	if err := os.WriteFile(s.accountPath(rec.AccountTag), data, 0o644); err != nil {
		return fmt.Errorf("failed to write account record: %w", err)
	}
	return nil
}

// Append ingests one battle into the account's history and writes the
// record back. An entry whose raw battle time is already present is
// dropped, the log is capped at constants.BattleLogLimit with the oldest
// evicted, and the stats snapshot and opponent ledger are recomputed from
// whatever remains. The bool reports whether the entry was new.
func (s *Store) Append(tag string, entry domain.BattleEntry) (*domain.AccountRecord, bool, error) {
	rec, err := s.LoadAccount(tag)
	if err != nil {
		return nil, false, err
	}

	for _, b := range rec.Battles {
		if b.BattleTime == entry.BattleTime {
			s.logger.Debug().
				Str("tag", tag).
				Str("battle_time", entry.BattleTime).
				Msg("battle already recorded, skipping")
			return rec, false, nil
		}
	}

	rec.Battles = append(rec.Battles, entry)
	if len(rec.Battles) > constants.BattleLogLimit {
		rec.Battles = rec.Battles[len(rec.Battles)-constants.BattleLogLimit:]
	}
	rec.Stats = battlelog.ComputeStats(rec.Battles)
	rec.Opponents = battlelog.ComputeOpponents(rec.Battles)

	if err := s.SaveAccount(rec); err != nil {
		return nil, false, err
	}

	s.logger.Debug().
		Str("tag", tag).
		Str("battle_time", entry.BattleTime).
		Int("battles", len(rec.Battles)).
		Msg("battle recorded")
	return rec, true, nil
}

func emptyRecord(tag string) *domain.AccountRecord {
	return &domain.AccountRecord{
		AccountTag: tag,
		Battles:    []domain.BattleEntry{},
		Stats:      domain.StatsSnapshot{ByMode: map[string]domain.ModeStats{}},
		Opponents:  map[string]*domain.OpponentRecord{},
	}
}
