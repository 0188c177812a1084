package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&config.Config{DataDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func battleAt(battleTime, result string) domain.BattleEntry {
	return domain.BattleEntry{
		BattleTime: battleTime,
		PlayedAt:   battleTime,
		Category:   "Ladder",
		Result:     result,
		Player:     domain.PlayerSummary{Tag: "#PLAYER", Name: "Player"},
		Opponent:   domain.PlayerSummary{Tag: "#ENEMY", Name: "Enemy"},
	}
}

func TestAppendAndReload(t *testing.T) {
	s := testStore(t)

	_, appended, err := s.Append("#ABC123", battleAt("t1", domain.ResultWin))
	require.NoError(t, err)
	assert.True(t, appended)
	rec, appended, err := s.Append("#ABC123", battleAt("t2", domain.ResultLoss))
	require.NoError(t, err)
	assert.True(t, appended)

	assert.Equal(t, 1, rec.Stats.Overall.Wins)
	assert.Equal(t, 1, rec.Stats.Overall.Losses)
	assert.Equal(t, 50.0, rec.Stats.Overall.WinRate)

	reloaded, err := s.LoadAccount("#ABC123")
	require.NoError(t, err)
	require.Len(t, reloaded.Battles, 2)
	assert.Equal(t, "t1", reloaded.Battles[0].BattleTime)
	assert.Equal(t, "t2", reloaded.Battles[1].BattleTime)
	assert.Equal(t, rec.Stats, reloaded.Stats)
	require.Contains(t, reloaded.Opponents, "#ENEMY")
	assert.Equal(t, 2, reloaded.Opponents["#ENEMY"].Total)
}

func TestAppendDeduplicates(t *testing.T) {
	s := testStore(t)

	_, appended, err := s.Append("#ABC123", battleAt("t1", domain.ResultWin))
	require.NoError(t, err)
	assert.True(t, appended)

	rec, appended, err := s.Append("#ABC123", battleAt("t1", domain.ResultWin))
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Len(t, rec.Battles, 1)
	assert.Equal(t, 1, rec.Stats.Overall.Total)
}

func TestAppendEvictsOldestPastLimit(t *testing.T) {
	s := testStore(t)

	var rec *domain.AccountRecord
	var err error
	for i := 0; i <= constants.BattleLogLimit; i++ {
		rec, _, err = s.Append("#ABC123", battleAt(fmt.Sprintf("t%03d", i), domain.ResultWin))
		require.NoError(t, err)
	}

	require.Len(t, rec.Battles, constants.BattleLogLimit)
	assert.Equal(t, "t001", rec.Battles[0].BattleTime)
	assert.Equal(t, fmt.Sprintf("t%03d", constants.BattleLogLimit), rec.Battles[len(rec.Battles)-1].BattleTime)
	assert.Equal(t, constants.BattleLogLimit, rec.Stats.Overall.Total)
}

func TestLoadAccountMissing(t *testing.T) {
	s := testStore(t)

	rec, err := s.LoadAccount("#NOBODY")
	require.NoError(t, err)
	assert.Equal(t, "#NOBODY", rec.AccountTag)
	assert.Empty(t, rec.Battles)
	assert.Empty(t, rec.Opponents)
}

func TestLoadAccountCorruptFile(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.accountPath("#ABC123"), []byte("{broken"), 0o644))

	_, err := s.LoadAccount("#ABC123")
	assert.Error(t, err)
}

func TestAccountPathNormalizesTag(t *testing.T) {
	s := testStore(t)

	_, _, err := s.Append("#abc123", battleAt("t1", domain.ResultWin))
	require.NoError(t, err)

	// same file regardless of case or leading #
	rec, err := s.LoadAccount("ABC123")
	require.NoError(t, err)
	assert.Len(t, rec.Battles, 1)

	_, statErr := os.Stat(filepath.Join(s.dir, monitoringDir, "ABC123.json"))
	assert.NoError(t, statErr)
}

func TestRegistryRoundTrip(t *testing.T) {
	s := testStore(t)

	registry := map[string]*domain.MonitorState{
		"#ABC123": {
			Name:            "Player",
			ChannelID:       42,
			LastBattleTime:  "20240115T093045.000Z",
			LastArena:       "Legendary Arena",
			PinnedMessageID: 7,
		},
	}
	require.NoError(t, s.SaveRegistry(registry))

	loaded, err := s.LoadRegistry()
	require.NoError(t, err)
	assert.Equal(t, registry, loaded)
}

func TestLoadRegistryMissing(t *testing.T) {
	s := testStore(t)

	registry, err := s.LoadRegistry()
	require.NoError(t, err)
	assert.NotNil(t, registry)
	assert.Empty(t, registry)
}
