// Package scheduler drives the polling loop. Every monitored account is
// visited on a fixed cadence and walked through the same step sequence:
// fetch the battle log, select what is new, ingest and announce it, advance
// the cursor, check for an arena change, refresh the pinned summary. A
// failing step is logged and skipped; nothing here ever stops the loop.
package scheduler

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"royale-monitor/internal/battlelog"
	"royale-monitor/internal/clash"
	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
	"royale-monitor/internal/format"
	"royale-monitor/internal/metrics"
	"royale-monitor/internal/notify"
	"royale-monitor/internal/service"
)

// Scheduler polls monitored accounts strictly one at a time. Sequential
// processing plus the inter-account delay keeps the Clash API call rate
// bounded no matter how many accounts are monitored.
type Scheduler struct {
	svc      *service.TrackerService
	notifier notify.Notifier
	poll     config.PollSettings
	logger   zerolog.Logger
}

func New(svc *service.TrackerService, notifier notify.Notifier, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		svc:      svc,
		notifier: notifier,
		poll:     cfg.Poll,
		logger:   logger,
	}
}

// Run cycles until ctx is cancelled. Account and step failures are
// contained inside each cycle, so the loop itself only ends on shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.poll.Interval).
		Dur("account_delay", s.poll.AccountDelay).
		Msg("battle checker started")

	for {
		s.RunCycle(ctx)
		if !sleep(ctx, s.poll.Interval) {
			s.logger.Info().Msg("battle checker stopped")
			return
		}
	}
}

// RunCycle visits every monitored account once. Accounts untracked after
// the cycle snapshot are skipped when their turn comes.
func (s *Scheduler) RunCycle(ctx context.Context) {
	tags := s.svc.TrackedTags()
	if len(tags) == 0 {
		return
	}

	logger := s.logger.With().Str("cycle", gonanoid.Must(8)).Logger()
	start := time.Now()

	for i, tag := range tags {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && !sleep(ctx, s.poll.AccountDelay) {
			return
		}
		s.pollAccount(ctx, logger.With().Str("tag", tag).Logger(), tag)
	}

	metrics.PollCycles.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	logger.Debug().Int("accounts", len(tags)).Dur("took", time.Since(start)).Msg("poll cycle complete")
}

// pollAccount runs the step sequence for one account. A fetch failure
// skips straight to the arena and summary steps; those run every cycle so
// the pinned report stays fresh even on quiet days.
func (s *Scheduler) pollAccount(ctx context.Context, logger zerolog.Logger, tag string) {
	state, ok := s.svc.StateOf(tag)
	if !ok {
		return
	}

	ingested := 0
	battles, err := s.svc.FetchBattles(ctx, tag)
	if err != nil {
		s.stepFailed(logger, "fetch", err)
	} else if len(battles) > 0 {
		ingested = s.ingestNew(ctx, logger, tag, state, battles)

		// the cursor follows the newest fetched battle, not the newest
		// ingested one, so it tracks the remote clock even when nothing
		// qualified
		if err := s.svc.AdvanceCursor(tag, battlelog.NewestBattleTime(battles)); err != nil && !errors.Is(err, service.ErrNotMonitored) {
			s.stepFailed(logger, "cursor", err)
		}
	}

	// batch rapid battles into a single pinned-summary edit
	if ingested > 0 && !sleep(ctx, s.poll.SummaryDelay) {
		return
	}

	s.checkArena(ctx, logger, tag, state.ChannelID)

	if err := s.svc.RefreshSummary(ctx, tag); err != nil {
		if !errors.Is(err, service.ErrNotMonitored) {
			s.stepFailed(logger, "summary", err)
		}
		return
	}
	metrics.NotificationsSent.WithLabelValues("summary").Inc()
}

// ingestNew records the battles newer than the account's cursor, oldest
// first, announcing each one as it lands. Returns how many were new.
func (s *Scheduler) ingestNew(ctx context.Context, logger zerolog.Logger, tag string, state *domain.MonitorState, battles []clash.Battle) int {
	newBattles := battlelog.SelectNewer(battles, state.LastBattleTime)
	if len(newBattles) == 0 {
		return 0
	}
	logger.Info().Int("count", len(newBattles)).Str("cursor", state.LastBattleTime).Msg("new battles found")

	ingested := 0
	for _, battle := range newBattles {
		if !s.svc.IsTracked(tag) {
			break
		}

		result, err := s.svc.IngestBattle(tag, battle)
		if err != nil {
			s.stepFailed(logger, "ingest", err)
			continue
		}
		if !result.Appended {
			continue
		}
		ingested++
		s.announceBattle(ctx, logger, state.ChannelID, result)
	}
	return ingested
}

// announceBattle posts one NEW BATTLE notice. When the opponent was
// already on the ledger before this battle, the rival alert rides along
// with the head-to-head record updated for it.
func (s *Scheduler) announceBattle(ctx context.Context, logger zerolog.Logger, channelID int64, result *service.IngestResult) {
	text := "NEW BATTLE\n" + format.BattleNotice(result.Entry)
	if result.Rival != nil {
		text += "\n\n🎯 " + format.RivalAlert(result.Rival)
	}
	if result.Record.Stats.Overall.Total > 0 {
		text += "\n\n" + format.SessionSummary(result.Record.Stats)
	}

	sendCtx, cancel := context.WithTimeout(ctx, constants.TelegramSendTimeout)
	defer cancel()
	if _, err := s.notifier.Send(sendCtx, channelID, text); err != nil {
		s.stepFailed(logger, "notify", err)
		return
	}

	metrics.NotificationsSent.WithLabelValues("battle").Inc()
	if result.Rival != nil {
		metrics.NotificationsSent.WithLabelValues("rival").Inc()
	}
}

// checkArena watches the account's arena for changes. The first observed
// arena is recorded silently; every later change is announced.
func (s *Scheduler) checkArena(ctx context.Context, logger zerolog.Logger, tag string, channelID int64) {
	player, err := s.svc.FetchProfile(ctx, tag)
	if err != nil {
		s.stepFailed(logger, "milestone", err)
		return
	}

	changed, previous, err := s.svc.RecordArena(tag, player.Arena.Name)
	if err != nil {
		if !errors.Is(err, service.ErrNotMonitored) {
			s.stepFailed(logger, "milestone", err)
		}
		return
	}
	if !changed {
		return
	}

	logger.Info().Str("from", previous).Str("to", player.Arena.Name).Msg("arena change")

	sendCtx, cancel := context.WithTimeout(ctx, constants.TelegramSendTimeout)
	defer cancel()
	if _, err := s.notifier.Send(sendCtx, channelID, format.ArenaChange(player.Name, previous, player.Arena.Name, player.Trophies)); err != nil {
		s.stepFailed(logger, "notify", err)
		return
	}
	metrics.NotificationsSent.WithLabelValues("arena").Inc()
}

func (s *Scheduler) stepFailed(logger zerolog.Logger, step string, err error) {
	metrics.PollStepFailures.WithLabelValues(step).Inc()
	logger.Warn().Err(err).Str("step", step).Msg("poll step failed")
}

// sleep waits for d unless ctx ends first. The bool reports whether the
// full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
