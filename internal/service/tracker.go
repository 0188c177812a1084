package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"royale-monitor/internal/battlelog"
	"royale-monitor/internal/clash"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
	"royale-monitor/internal/format"
	"royale-monitor/internal/metrics"
	"royale-monitor/internal/notify"
	"royale-monitor/internal/store"
)

var (
	ErrAlreadyMonitored = errors.New("account already monitored")
	ErrNotMonitored     = errors.New("account not monitored")
)

// TrackerService owns the monitored-accounts table and mediates every
// mutation of account state. The scheduler and the bot both go through it,
// so per-account writes are serialized here and nowhere else.
type TrackerService struct {
	clash    *clash.Client
	store    *store.Store
	notifier notify.Notifier
	logger   zerolog.Logger

	mu        sync.RWMutex
	monitored map[string]*domain.MonitorState

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewTrackerService(client *clash.Client, st *store.Store, notifier notify.Notifier, logger zerolog.Logger) (*TrackerService, error) {
	registry, err := st.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	logger.Info().Int("accounts", len(registry)).Msg("monitored accounts loaded")

	return &TrackerService{
		clash:     client,
		store:     st,
		notifier:  notifier,
		logger:    logger,
		monitored: registry,
		locks:     map[string]*sync.Mutex{},
	}, nil
}

// accountLock returns the mutex serializing battle-log writes for one tag.
func (s *TrackerService) accountLock(tag string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if _, ok := s.locks[tag]; !ok {
		s.locks[tag] = &sync.Mutex{}
	}
	return s.locks[tag]
}

// Profile bundles everything a profile report needs. Clan and Stats are nil
// when unavailable.
type Profile struct {
	Player *clash.Player
	Clan   *clash.Clan
	Chests *clash.UpcomingChests
	Stats  *domain.StatsSnapshot
}

// Profile fetches the player and upcoming chests concurrently, then the
// clan details when the player is in one. Clan and recorded-stats failures
// degrade to nil rather than failing the whole lookup.
func (s *TrackerService) Profile(ctx context.Context, rawTag string) (*Profile, error) {
	tag := clash.NormalizeTag(rawTag)

	var player *clash.Player
	var chests *clash.UpcomingChests

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(gctx, constants.ExternalAPITimeout)
		defer cancel()
		var err error
		player, err = s.clash.GetPlayer(fetchCtx, tag)
		return err
	})
	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(gctx, constants.ExternalAPITimeout)
		defer cancel()
		var err error
		chests, err = s.clash.GetUpcomingChests(fetchCtx, tag)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profile := &Profile{Player: player, Chests: chests}

	if player.Clan != nil {
		clanCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		clan, err := s.clash.GetClan(clanCtx, player.Clan.Tag)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("clan", player.Clan.Tag).Msg("could not fetch clan data")
		} else {
			profile.Clan = clan
		}
	}

	if rec, err := s.store.LoadAccount(tag); err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("could not load recorded stats")
	} else if rec.Stats.Overall.Total > 0 {
		stats := rec.Stats
		profile.Stats = &stats
	}

	return profile, nil
}

// TrackResult reports a successful Track call back to the command surface.
type TrackResult struct {
	Player    *clash.Player
	State     *domain.MonitorState
	TopicName string
	Seeded    int
}

// Track starts monitoring an account: opens its channel, posts and pins the
// profile banner, seeds history from the current battle log and registers
// the account for polling. The cursor starts at the newest fetched battle
// so polling only reports what happens from now on.
func (s *TrackerService) Track(ctx context.Context, rawTag string) (*TrackResult, error) {
	tag := clash.NormalizeTag(rawTag)

	if s.IsTracked(tag) {
		return nil, ErrAlreadyMonitored
	}

	profile, err := s.Profile(ctx, tag)
	if err != nil {
		return nil, err
	}
	player := profile.Player

	topicName := fmt.Sprintf("%s (%s)", player.Name, strings.TrimPrefix(tag, "#"))
	channelID, err := s.notifier.OpenChannel(ctx, topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	banner := "🔔 MONITORING STARTED\n\n" + s.playerInfo(profile)
	pinnedID, err := s.notifier.Send(ctx, channelID, banner)
	if err != nil {
		return nil, fmt.Errorf("failed to post banner: %w", err)
	}
	if err := s.notifier.Pin(ctx, pinnedID); err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("could not pin banner")
	}

	lastBattleTime, seeded := s.seedHistory(ctx, tag)

	state := &domain.MonitorState{
		Name:            player.Name,
		ChannelID:       channelID,
		LastBattleTime:  lastBattleTime,
		LastArena:       player.Arena.Name,
		PinnedMessageID: pinnedID,
	}

	s.mu.Lock()
	s.monitored[tag] = state
	err = s.store.SaveRegistry(s.monitored)
	if err != nil {
		delete(s.monitored, tag)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	s.logger.Info().
		Str("tag", tag).
		Str("name", player.Name).
		Int64("channel_id", channelID).
		Int("seeded", seeded).
		Msg("monitoring started")

	saved := *state
	return &TrackResult{Player: player, State: &saved, TopicName: topicName, Seeded: seeded}, nil
}

// seedHistory records the account's current battle log so stats and rival
// ledgers start populated. Fetch failure just means starting fresh.
func (s *TrackerService) seedHistory(ctx context.Context, tag string) (string, int) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	battles, err := s.clash.GetBattleLog(fetchCtx, tag)
	if err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("could not fetch battle log, starting fresh")
		return "", 0
	}
	if len(battles) == 0 {
		return "", 0
	}

	lock := s.accountLock(tag)
	lock.Lock()
	defer lock.Unlock()

	seeded := 0
	for _, battle := range battlelog.SortOldestFirst(battles) {
		entry := battlelog.Normalize(battle, tag)
		if _, appended, err := s.store.Append(tag, entry); err != nil {
			s.logger.Warn().Err(err).Str("tag", tag).Str("battle_time", entry.BattleTime).Msg("could not seed battle")
		} else if appended {
			seeded++
		}
	}

	return battlelog.NewestBattleTime(battles), seeded
}

// Untrack stops monitoring an account. The channel is closed best-effort;
// recorded history stays on disk. The returned bool reports whether the
// channel was closed.
func (s *TrackerService) Untrack(ctx context.Context, rawTag string) (*domain.MonitorState, bool, error) {
	tag := clash.NormalizeTag(rawTag)

	s.mu.Lock()
	state, ok := s.monitored[tag]
	if !ok {
		s.mu.Unlock()
		return nil, false, ErrNotMonitored
	}
	delete(s.monitored, tag)
	err := s.store.SaveRegistry(s.monitored)
	if err != nil {
		s.monitored[tag] = state
	}
	s.mu.Unlock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to save registry: %w", err)
	}

	closed := false
	if state.ChannelID != 0 {
		if err := s.notifier.CloseChannel(ctx, state.ChannelID); err != nil {
			s.logger.Warn().Err(err).Str("tag", tag).Msg("could not close channel")
		} else {
			closed = true
		}
	}

	s.logger.Info().Str("tag", tag).Str("name", state.Name).Msg("monitoring stopped")
	saved := *state
	return &saved, closed, nil
}

// TrackedTags returns the monitored tags in stable order.
func (s *TrackerService) TrackedTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := make([]string, 0, len(s.monitored))
	for tag := range s.monitored {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (s *TrackerService) IsTracked(rawTag string) bool {
	tag := clash.NormalizeTag(rawTag)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.monitored[tag]
	return ok
}

// StateOf returns a copy of the account's monitor state.
func (s *TrackerService) StateOf(rawTag string) (*domain.MonitorState, bool) {
	tag := clash.NormalizeTag(rawTag)
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.monitored[tag]
	if !ok {
		return nil, false
	}
	saved := *state
	return &saved, true
}

// Account returns the recorded history for an account, monitored or not.
func (s *TrackerService) Account(rawTag string) (*domain.AccountRecord, error) {
	tag := clash.NormalizeTag(rawTag)
	lock := s.accountLock(tag)
	lock.Lock()
	defer lock.Unlock()
	return s.store.LoadAccount(tag)
}

// OpponentHistory returns the ledger entry against one opponent, nil when
// the two have never met on record.
func (s *TrackerService) OpponentHistory(rawTag, rawOpponentTag string) (*domain.OpponentRecord, error) {
	rec, err := s.Account(rawTag)
	if err != nil {
		return nil, err
	}
	return rec.Opponents[clash.NormalizeTag(rawOpponentTag)], nil
}

// Rivals returns opponents faced at least constants.RivalThreshold times,
// most-faced first.
func (s *TrackerService) Rivals(rawTag string) ([]*domain.OpponentRecord, error) {
	rec, err := s.Account(rawTag)
	if err != nil {
		return nil, err
	}
	return battlelog.RepeatOpponents(rec.Opponents, constants.RivalThreshold), nil
}

// FetchBattles pulls the account's current battle log page.
func (s *TrackerService) FetchBattles(ctx context.Context, rawTag string) ([]clash.Battle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()
	return s.clash.GetBattleLog(fetchCtx, clash.NormalizeTag(rawTag))
}

// FetchProfile pulls the account's current player sheet.
func (s *TrackerService) FetchProfile(ctx context.Context, rawTag string) (*clash.Player, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()
	return s.clash.GetPlayer(fetchCtx, clash.NormalizeTag(rawTag))
}

// IngestResult is what one recorded battle yields for notification
// assembly.
type IngestResult struct {
	Entry    domain.BattleEntry
	Record   *domain.AccountRecord
	Rival    *domain.OpponentRecord
	Appended bool
}

// IngestBattle normalizes and records one battle. When the direct opponent
// was already on the ledger before this battle, Rival carries their updated
// head-to-head record for the alert.
func (s *TrackerService) IngestBattle(rawTag string, battle clash.Battle) (*IngestResult, error) {
	tag := clash.NormalizeTag(rawTag)
	lock := s.accountLock(tag)
	lock.Lock()
	defer lock.Unlock()

	opponentTag := battlelog.OpponentTag(battle, tag)

	var priorMeetings int
	if opponentTag != "" {
		rec, err := s.store.LoadAccount(tag)
		if err != nil {
			return nil, err
		}
		if prior := rec.Opponents[opponentTag]; prior != nil {
			priorMeetings = prior.Total
		}
	}

	entry := battlelog.Normalize(battle, tag)
	rec, appended, err := s.store.Append(tag, entry)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Entry: entry, Record: rec, Appended: appended}
	if appended {
		metrics.BattlesIngested.WithLabelValues(entry.Category).Inc()
		if opponentTag != "" && priorMeetings >= 1 {
			result.Rival = rec.Opponents[opponentTag]
		}
	}
	return result, nil
}

// AdvanceCursor moves the account's battle cursor forward. It never moves
// backwards: raw battle times sort lexicographically in chronological
// order, so a stale or reordered page cannot rewind the cursor.
func (s *TrackerService) AdvanceCursor(rawTag, battleTime string) error {
	tag := clash.NormalizeTag(rawTag)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.monitored[tag]
	if !ok {
		return ErrNotMonitored
	}
	if battleTime <= state.LastBattleTime {
		return nil
	}
	state.LastBattleTime = battleTime
	return s.store.SaveRegistry(s.monitored)
}

// RecordArena stores the account's current arena and reports whether this
// was a change worth announcing. The first observed arena never announces.
func (s *TrackerService) RecordArena(rawTag, arena string) (changed bool, previous string, err error) {
	tag := clash.NormalizeTag(rawTag)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.monitored[tag]
	if !ok {
		return false, "", ErrNotMonitored
	}

	previous = state.LastArena
	changed = previous != "" && arena != previous
	if state.LastArena != arena {
		state.LastArena = arena
		if err := s.store.SaveRegistry(s.monitored); err != nil {
			return false, previous, err
		}
	}
	return changed, previous, nil
}

// RefreshSummary re-renders the pinned profile banner with fresh data.
func (s *TrackerService) RefreshSummary(ctx context.Context, rawTag string) error {
	tag := clash.NormalizeTag(rawTag)

	state, ok := s.StateOf(tag)
	if !ok {
		return ErrNotMonitored
	}
	if state.PinnedMessageID == 0 || state.ChannelID == 0 {
		return nil
	}

	player, err := s.FetchProfile(ctx, tag)
	if err != nil {
		return fmt.Errorf("failed to fetch player: %w", err)
	}

	profile := &Profile{Player: player}

	chestsCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	chests, err := s.clash.GetUpcomingChests(chestsCtx, tag)
	cancel()
	if err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("could not fetch chests for summary")
	} else {
		profile.Chests = chests
	}

	if player.Clan != nil {
		clanCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		clan, err := s.clash.GetClan(clanCtx, player.Clan.Tag)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("clan", player.Clan.Tag).Msg("could not fetch clan for summary")
		} else {
			profile.Clan = clan
		}
	}

	if rec, err := s.store.LoadAccount(tag); err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("could not load recorded stats for summary")
	} else if rec.Stats.Overall.Total > 0 {
		stats := rec.Stats
		profile.Stats = &stats
	}

	text := "🔔 MONITORING ACTIVE\n\n" + s.playerInfo(profile)
	if err := s.notifier.Edit(ctx, state.PinnedMessageID, text); err != nil {
		return fmt.Errorf("failed to edit pinned summary: %w", err)
	}

	s.logger.Debug().Str("tag", tag).Msg("pinned summary refreshed")
	return nil
}

func (s *TrackerService) playerInfo(p *Profile) string {
	return format.PlayerInfo(p.Player, p.Clan, p.Chests, p.Stats)
}
