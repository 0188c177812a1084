// Package bot is the chat command surface. It long-polls Telegram for
// updates, gates commands to the configured group and answers in the thread
// the command came from.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"royale-monitor/internal/clash"
	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
	"royale-monitor/internal/format"
	"royale-monitor/internal/service"
	"royale-monitor/internal/telegram"
)

const helpText = "Clash Royale Monitor Bot\n\n" +
	"Available commands:\n" +
	"- /search <playertag> - Search for player info\n" +
	"- /monitor <playertag> - Start monitoring a player (creates topic)\n" +
	"- /unmonitor <playertag> - Stop monitoring a player (closes topic)\n" +
	"- /listmonitors - List all monitored players\n" +
	"- /stats <playertag> - View monitored battle statistics\n" +
	"- /rivals <playertag> - Show repeat opponents (rivalries)\n" +
	"- /rivals <playertag> <opponent> - Head-to-head stats vs opponent\n\n" +
	"Player tags can be with or without #\n\n" +
	"Make sure this group has Topics enabled!"

const rivalsUsage = "Usage:\n" +
	"/rivals <playertag> - Show all repeat opponents\n" +
	"/rivals <playertag> <opponent_tag> - Show detailed stats vs specific opponent"

type Bot struct {
	client  *telegram.Client
	svc     *service.TrackerService
	groupID int64
	logger  zerolog.Logger
}

func New(client *telegram.Client, svc *service.TrackerService, cfg *config.Config, logger zerolog.Logger) *Bot {
	return &Bot{
		client:  client,
		svc:     svc,
		groupID: cfg.GroupChatID,
		logger:  logger,
	}
}

// Run long-polls for commands until ctx is cancelled. Poll failures back off
// for a second and retry; a cancelled poll ends the loop.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info().Int64("group_id", b.groupID).Msg("command bot started")

	var offset int64
	for ctx.Err() == nil {
		updates, err := b.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger.Warn().Err(err).Msg("failed to fetch updates")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update.Message)
		}
	}

	b.logger.Info().Msg("command bot stopped")
}

func (b *Bot) handleUpdate(ctx context.Context, msg *telegram.Message) {
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}

	command, args := parseCommand(msg.Text)

	if msg.Chat.ID != b.groupID {
		b.logger.Warn().
			Int64("chat_id", msg.Chat.ID).
			Str("command", command).
			Msg("command from unauthorized chat")
		b.replyTo(ctx, msg, "This bot only works in the authorized group.")
		return
	}

	var reply string
	switch command {
	case "start", "help":
		reply = helpText
	case "search":
		reply = b.handleSearch(ctx, args)
	case "monitor":
		reply = b.handleMonitor(ctx, args)
	case "unmonitor":
		reply = b.handleUnmonitor(ctx, args)
	case "listmonitors":
		reply = b.handleListMonitors()
	case "stats":
		reply = b.handleStats(args)
	case "rivals":
		reply = b.handleRivals(ctx, args)
	default:
		return
	}

	b.logger.Info().Str("command", command).Str("args", args).Msg("command handled")
	b.replyTo(ctx, msg, reply)
}

// parseCommand splits "/monitor@SomeBot #ABC123" into ("monitor", "#ABC123").
func parseCommand(text string) (string, string) {
	command, args, _ := strings.Cut(text, " ")
	command = strings.TrimPrefix(command, "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), strings.TrimSpace(args)
}

func (b *Bot) handleSearch(ctx context.Context, args string) string {
	if args == "" {
		return "Usage: /search <playertag>"
	}
	tag := clash.NormalizeTag(firstField(args))

	profile, err := b.svc.Profile(ctx, tag)
	if err != nil {
		return userError(err, tag)
	}
	return format.PlayerInfo(profile.Player, profile.Clan, profile.Chests, profile.Stats)
}

func (b *Bot) handleMonitor(ctx context.Context, args string) string {
	if args == "" {
		return "Usage: /monitor <playertag>"
	}
	tag := clash.NormalizeTag(firstField(args))

	result, err := b.svc.Track(ctx, tag)
	switch {
	case errors.Is(err, service.ErrAlreadyMonitored):
		reply := fmt.Sprintf("⚠️ Already monitoring %s", tag)
		if state, ok := b.svc.StateOf(tag); ok {
			reply += fmt.Sprintf("\nTopic ID: %d", state.ChannelID)
		}
		return reply
	case err != nil:
		return userError(err, tag)
	}

	return fmt.Sprintf("✅ Now monitoring %s (%s)\n", result.Player.Name, tag) +
		fmt.Sprintf("📌 Topic created: %s\n", result.TopicName) +
		"Battle updates will be posted to the topic.\n" +
		fmt.Sprintf("Stats will be saved to monitoring/%s.json", strings.TrimPrefix(tag, "#"))
}

func (b *Bot) handleUnmonitor(ctx context.Context, args string) string {
	if args == "" {
		return "Usage: /unmonitor <playertag>"
	}
	tag := clash.NormalizeTag(firstField(args))

	state, closed, err := b.svc.Untrack(ctx, tag)
	switch {
	case errors.Is(err, service.ErrNotMonitored):
		return fmt.Sprintf("⚠️ Player %s is not being monitored.", tag)
	case err != nil:
		return fmt.Sprintf("❌ Error: %v", err)
	}

	reply := fmt.Sprintf("✅ Stopped monitoring %s (%s)", state.Name, tag)
	switch {
	case closed:
		reply += "\n📌 Topic has been closed.\n📊 Battle logs are preserved in the monitoring folder."
	case state.ChannelID != 0:
		reply += "\n⚠️ Could not close topic automatically."
	}
	return reply
}

func (b *Bot) handleListMonitors() string {
	tags := b.svc.TrackedTags()

	entries := make([]format.MonitorEntry, 0, len(tags))
	for _, tag := range tags {
		state, ok := b.svc.StateOf(tag)
		if !ok {
			continue
		}
		entry := format.MonitorEntry{Tag: tag, Name: state.Name, ChannelID: state.ChannelID}
		if rec, err := b.svc.Account(tag); err != nil {
			b.logger.Warn().Err(err).Str("tag", tag).Msg("could not load stats for listing")
		} else {
			entry.Games = rec.Stats.Overall.Total
			entry.WinRate = rec.Stats.Overall.WinRate
		}
		entries = append(entries, entry)
	}
	return format.MonitorList(entries)
}

func (b *Bot) handleStats(args string) string {
	if args == "" {
		return "Usage: /stats <playertag>"
	}
	tag := clash.NormalizeTag(firstField(args))

	rec, err := b.svc.Account(tag)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if rec.Stats.Overall.Total == 0 {
		return fmt.Sprintf("📊 No battle statistics recorded for %s", tag)
	}
	return format.StatsReport(tag, rec.Stats)
}

func (b *Bot) handleRivals(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	switch len(fields) {
	case 0:
		return rivalsUsage
	case 1:
		return b.rivalsList(ctx, clash.NormalizeTag(fields[0]))
	default:
		return b.rivalDetail(clash.NormalizeTag(fields[0]), clash.NormalizeTag(fields[1]))
	}
}

func (b *Bot) rivalsList(ctx context.Context, tag string) string {
	playerName := tag
	if state, ok := b.svc.StateOf(tag); ok {
		playerName = state.Name
	} else if player, err := b.svc.FetchProfile(ctx, tag); err == nil {
		playerName = player.Name
	}

	rivals, err := b.svc.Rivals(tag)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(rivals) == 0 {
		return fmt.Sprintf("No repeat opponents found for %s (%s).\nKeep playing to track your rivalries!", playerName, tag)
	}
	return format.RivalsList(rivals, playerName)
}

func (b *Bot) rivalDetail(tag, opponentTag string) string {
	rec, err := b.svc.OpponentHistory(tag, opponentTag)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if rec == nil {
		return fmt.Sprintf("No match history found between %s and %s", tag, opponentTag)
	}
	return format.OpponentDetail(rec)
}

// replyTo answers in the thread the command came from, chunked to the
// transport limit.
func (b *Bot) replyTo(ctx context.Context, msg *telegram.Message, text string) {
	if text == "" {
		return
	}
	for _, part := range telegram.SplitMessage(text, telegram.MaxMessageLen) {
		sendCtx, cancel := context.WithTimeout(ctx, constants.TelegramSendTimeout)
		_, err := b.client.SendMessage(sendCtx, msg.Chat.ID, msg.MessageThreadID, part)
		cancel()
		if err != nil {
			b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")
			return
		}
	}
}

// userError translates lookup failures into the replies users see.
func userError(err error, tag string) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("❌ Player not found: %s", tag)
	case errors.Is(err, domain.ErrForbidden):
		return "❌ API key error. Please check configuration."
	default:
		return fmt.Sprintf("❌ Error: %v", err)
	}
}

func firstField(args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
