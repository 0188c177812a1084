package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royale-monitor/internal/clash"
	"royale-monitor/internal/config"
	"royale-monitor/internal/domain"
	"royale-monitor/internal/service"
	"royale-monitor/internal/store"
)

func battleJSON(battleTime, playerTag, oppTag string) string {
	return fmt.Sprintf(`{
		"battleTime": "%s",
		"type": "pathOfLegend",
		"gameMode": {"id": 1, "name": "Ranked1v1"},
		"arena": {"id": 1, "name": "Legendary Arena"},
		"team": [{"tag": "%s", "name": "TestPlayer", "crowns": 3}],
		"opponent": [{"tag": "%s", "name": "Rival", "crowns": 1}]
	}`, battleTime, playerTag, oppTag)
}

// royaleServer fakes the Clash API for a set of accounts. battles maps a
// bare tag to its battlelog page, arenas to the player's current arena.
// Tags listed in broken answer 404 to everything.
func royaleServer(battles map[string][]string, arenas map[string]string, broken ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		tag := strings.TrimPrefix(parts[1], "#")
		for _, b := range broken {
			if tag == b {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/battlelog"):
			fmt.Fprintf(w, "[%s]", strings.Join(battles[tag], ","))
		case strings.HasSuffix(r.URL.Path, "/upcomingchests"):
			w.Write([]byte(`{"items": []}`))
		default:
			fmt.Fprintf(w, `{"tag": "#%s", "name": "TestPlayer", "trophies": 6500, "battleCount": 10, "wins": 6, "arena": {"id": 1, "name": "%s"}}`,
				tag, arenas[tag])
		}
	}))
}

type sentMessage struct {
	channelID int64
	text      string
}

type editedMessage struct {
	messageID int64
	text      string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []sentMessage
	edits []editedMessage
}

func (f *fakeNotifier) OpenChannel(ctx context.Context, name string) (int64, error) { return 1, nil }
func (f *fakeNotifier) CloseChannel(ctx context.Context, channelID int64) error     { return nil }

func (f *fakeNotifier) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMessage{channelID: channelID, text: text})
	return int64(len(f.sends)), nil
}

func (f *fakeNotifier) Pin(ctx context.Context, messageID int64) error { return nil }

func (f *fakeNotifier) Edit(ctx context.Context, messageID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedMessage{messageID: messageID, text: text})
	return nil
}

func (f *fakeNotifier) sentWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sends {
		if strings.HasPrefix(s.text, prefix) {
			out = append(out, s.text)
		}
	}
	return out
}

func newScheduler(t *testing.T, baseURL string, states map[string]*domain.MonitorState) (*Scheduler, *service.TrackerService, *fakeNotifier) {
	t.Helper()
	cfg := &config.Config{
		ClashAPIToken:   "test-token",
		ClashAPIBaseURL: baseURL,
		DataDir:         t.TempDir(),
	}
	st, err := store.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, st.SaveRegistry(states))

	notifier := &fakeNotifier{}
	svc, err := service.NewTrackerService(clash.New(cfg), st, notifier, zerolog.Nop())
	require.NoError(t, err)
	return New(svc, notifier, cfg, zerolog.Nop()), svc, notifier
}

func TestRunCycleIngestsNewBattlesOldestFirst(t *testing.T) {
	// newest-first page; the cursor sits between the 3rd and 4th entries,
	// so exactly the top three qualify
	srv := royaleServer(map[string][]string{
		"ABC123": {
			battleJSON("20240115T120000.000Z", "#ABC123", "#ENEMY3"),
			battleJSON("20240115T110000.000Z", "#ABC123", "#ENEMY2"),
			battleJSON("20240115T100000.000Z", "#ABC123", "#ENEMY1"),
			battleJSON("20240115T090000.000Z", "#ABC123", "#ENEMY0"),
			battleJSON("20240115T080000.000Z", "#ABC123", "#ENEMY0"),
		},
	}, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastBattleTime: "20240115T093000.000Z", LastArena: "Legendary Arena"},
	})

	sched.RunCycle(context.Background())

	notices := notifier.sentWithPrefix("NEW BATTLE\n")
	require.Len(t, notices, 3)
	assert.Contains(t, notices[0], "2024-01-15 10:00:00 UTC")
	assert.Contains(t, notices[1], "2024-01-15 11:00:00 UTC")
	assert.Contains(t, notices[2], "2024-01-15 12:00:00 UTC")
	for _, notice := range notices {
		assert.Contains(t, notice, "📊 Session:")
	}

	state, ok := svc.StateOf("#ABC123")
	require.True(t, ok)
	assert.Equal(t, "20240115T120000.000Z", state.LastBattleTime)

	rec, err := svc.Account("#ABC123")
	require.NoError(t, err)
	assert.Len(t, rec.Battles, 3)
}

func TestRunCycleSecondCycleIsQuiet(t *testing.T) {
	srv := royaleServer(map[string][]string{
		"ABC123": {battleJSON("20240115T100000.000Z", "#ABC123", "#ENEMY1")},
	}, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, _, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastArena: "Legendary Arena"},
	})

	sched.RunCycle(context.Background())
	require.Len(t, notifier.sentWithPrefix("NEW BATTLE\n"), 1)

	sched.RunCycle(context.Background())
	assert.Len(t, notifier.sentWithPrefix("NEW BATTLE\n"), 1)
}

func TestRunCycleRivalAlert(t *testing.T) {
	srv := royaleServer(map[string][]string{
		"ABC123": {battleJSON("20240115T110000.000Z", "#ABC123", "#ENEMY1")},
	}, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastBattleTime: "20240115T100000.000Z", LastArena: "Legendary Arena"},
	})

	// one earlier meeting already on the ledger
	_, err := svc.IngestBattle("#ABC123", clash.Battle{
		BattleTime: "20240115T100000.000Z",
		Team:       []clash.BattleSide{{Tag: "#ABC123", Crowns: 1}},
		Opponent:   []clash.BattleSide{{Tag: "#ENEMY1", Name: "Rival", Crowns: 3}},
	})
	require.NoError(t, err)

	sched.RunCycle(context.Background())

	notices := notifier.sentWithPrefix("NEW BATTLE\n")
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "🎯 RIVAL MATCH! 2 total matches vs Rival")
	assert.Contains(t, notices[0], "Record: 1W/1L")
}

func TestRunCycleFirstBattleAgainstOpponentHasNoRivalAlert(t *testing.T) {
	srv := royaleServer(map[string][]string{
		"ABC123": {battleJSON("20240115T110000.000Z", "#ABC123", "#ENEMY1")},
	}, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, _, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastArena: "Legendary Arena"},
	})

	sched.RunCycle(context.Background())

	notices := notifier.sentWithPrefix("NEW BATTLE\n")
	require.Len(t, notices, 1)
	assert.NotContains(t, notices[0], "RIVAL MATCH!")
}

func TestRunCycleArenaChangeAnnouncedOnce(t *testing.T) {
	srv := royaleServer(nil, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastArena: "Spooky Town"},
	})

	sched.RunCycle(context.Background())

	alerts := notifier.sentWithPrefix("🎉 ARENA CHANGE!")
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Spooky Town ➡️ Legendary Arena")

	state, ok := svc.StateOf("#ABC123")
	require.True(t, ok)
	assert.Equal(t, "Legendary Arena", state.LastArena)

	// same arena next cycle stays silent
	sched.RunCycle(context.Background())
	assert.Len(t, notifier.sentWithPrefix("🎉 ARENA CHANGE!"), 1)
}

func TestRunCycleFirstArenaObservationSilent(t *testing.T) {
	srv := royaleServer(nil, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {Name: "TestPlayer", ChannelID: 7},
	})

	sched.RunCycle(context.Background())

	assert.Empty(t, notifier.sentWithPrefix("🎉 ARENA CHANGE!"))
	state, ok := svc.StateOf("#ABC123")
	require.True(t, ok)
	assert.Equal(t, "Legendary Arena", state.LastArena)
}

func TestRunCycleFetchFailureStillRefreshesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/battlelog") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/upcomingchests") {
			w.Write([]byte(`{"items": []}`))
			return
		}
		w.Write([]byte(`{"tag": "#ABC123", "name": "TestPlayer", "trophies": 6500, "arena": {"id": 1, "name": "Legendary Arena"}}`))
	}))
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#ABC123": {
			Name:            "TestPlayer",
			ChannelID:       7,
			LastBattleTime:  "20240115T100000.000Z",
			LastArena:       "Legendary Arena",
			PinnedMessageID: 55,
		},
	})

	sched.RunCycle(context.Background())

	assert.Empty(t, notifier.sends)
	require.Len(t, notifier.edits, 1)
	assert.Equal(t, int64(55), notifier.edits[0].messageID)

	state, ok := svc.StateOf("#ABC123")
	require.True(t, ok)
	assert.Equal(t, "20240115T100000.000Z", state.LastBattleTime, "cursor untouched on fetch failure")
}

func TestRunCycleOneAccountFailureDoesNotAbortOthers(t *testing.T) {
	// #AAAA sorts first and fails everything; #BBBB must still be served
	srv := royaleServer(map[string][]string{
		"BBBB": {battleJSON("20240115T100000.000Z", "#BBBB", "#ENEMY1")},
	}, map[string]string{"BBBB": "Legendary Arena"}, "AAAA")
	defer srv.Close()
	sched, _, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		"#AAAA": {Name: "Broken", ChannelID: 5, LastArena: "Arena 1"},
		"#BBBB": {Name: "Healthy", ChannelID: 7, LastArena: "Legendary Arena"},
	})

	sched.RunCycle(context.Background())

	notices := notifier.sentWithPrefix("NEW BATTLE\n")
	require.Len(t, notices, 1)
	assert.Equal(t, int64(7), notifier.sends[len(notifier.sends)-1].channelID)
}

func TestRunCycleReplayedPageDoesNotDuplicate(t *testing.T) {
	srv := royaleServer(map[string][]string{
		"ABC123": {battleJSON("20240115T100000.000Z", "#ABC123", "#ENEMY1")},
	}, map[string]string{"ABC123": "Legendary Arena"})
	defer srv.Close()
	sched, svc, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{
		// stale cursor: the battle is newer than it but already recorded
		"#ABC123": {Name: "TestPlayer", ChannelID: 7, LastArena: "Legendary Arena"},
	})

	_, err := svc.IngestBattle("#ABC123", clash.Battle{
		BattleTime: "20240115T100000.000Z",
		Team:       []clash.BattleSide{{Tag: "#ABC123", Crowns: 3}},
		Opponent:   []clash.BattleSide{{Tag: "#ENEMY1", Crowns: 1}},
	})
	require.NoError(t, err)

	sched.RunCycle(context.Background())

	assert.Empty(t, notifier.sentWithPrefix("NEW BATTLE\n"))

	rec, err := svc.Account("#ABC123")
	require.NoError(t, err)
	assert.Len(t, rec.Battles, 1)

	state, ok := svc.StateOf("#ABC123")
	require.True(t, ok)
	assert.Equal(t, "20240115T100000.000Z", state.LastBattleTime, "cursor still follows the fetched page")
}

func TestRunCycleEmptyRegistryDoesNothing(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	sched, _, notifier := newScheduler(t, srv.URL, map[string]*domain.MonitorState{})

	sched.RunCycle(context.Background())

	assert.Zero(t, hits)
	assert.Empty(t, notifier.sends)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := royaleServer(nil, nil)
	defer srv.Close()
	sched, _, _ := newScheduler(t, srv.URL, map[string]*domain.MonitorState{})
	sched.poll.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}
