// Package format renders plain-text reports and notifications. Everything
// here is pure string building; senders decide where the text goes.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"royale-monitor/internal/clash"
	"royale-monitor/internal/domain"
)

const (
	heavyRule = "========================================"
	lightRule = "--------------------"
)

// PlayerInfo builds the full profile report used for search results and the
// pinned monitoring summary. clan, chests and stats are all optional.
func PlayerInfo(player *clash.Player, clan *clash.Clan, chests *clash.UpcomingChests, stats *domain.StatsSnapshot) string {
	var b strings.Builder

	winRate := 0.0
	if player.BattleCount > 0 {
		winRate = float64(player.Wins) / float64(player.BattleCount) * 100
	}
	updated := time.Now().UTC().Format("2006-01-02 15:04:05") + " UTC"

	fmt.Fprintf(&b, "%s\n", heavyRule)
	fmt.Fprintf(&b, "Player: %s (%s)\n", player.Name, player.Tag)
	fmt.Fprintf(&b, "Last Updated: %s\n", updated)
	fmt.Fprintf(&b, "%s\n\n", heavyRule)

	fmt.Fprintf(&b, "Trophies: %s (Best: %s)\n", comma(player.Trophies), comma(player.BestTrophies))
	fmt.Fprintf(&b, "Level: %d\n", player.ExpLevel)
	fmt.Fprintf(&b, "Arena: %s\n\n", player.Arena.Name)

	fmt.Fprintf(&b, "Battle Stats (All Time):\n")
	fmt.Fprintf(&b, "- Wins: %s\n", comma(player.Wins))
	fmt.Fprintf(&b, "- Losses: %s\n", comma(player.Losses))
	fmt.Fprintf(&b, "- Total Battles: %s\n", comma(player.BattleCount))
	fmt.Fprintf(&b, "- Win Rate: %.1f%%\n", winRate)
	fmt.Fprintf(&b, "- 3-Crown Wins: %s\n\n", comma(player.ThreeCrownWins))

	fmt.Fprintf(&b, "Challenge Stats:\n")
	fmt.Fprintf(&b, "- Max Wins: %d\n", player.ChallengeMaxWins)
	fmt.Fprintf(&b, "- Cards Won: %s\n\n", comma(player.ChallengeCardsWon))

	fmt.Fprintf(&b, "Tournament Stats:\n")
	fmt.Fprintf(&b, "- Battles: %s\n", comma(player.TournamentBattleCount))
	fmt.Fprintf(&b, "- Cards Won: %s\n\n", comma(player.TournamentCardsWon))

	fmt.Fprintf(&b, "Cards Found: %d\n\n", len(player.Cards))

	fmt.Fprintf(&b, "Donations:\n")
	fmt.Fprintf(&b, "- Given: %s\n", comma(player.Donations))
	fmt.Fprintf(&b, "- Received: %s\n", comma(player.DonationsReceived))
	fmt.Fprintf(&b, "- Total Given: %s\n\n", comma(player.TotalDonations))

	fmt.Fprintf(&b, "War Stats:\n")
	fmt.Fprintf(&b, "- War Day Wins: %s\n", comma(player.WarDayWins))
	fmt.Fprintf(&b, "- Clan Cards Collected: %s\n\n", comma(player.ClanCardsCollected))

	fmt.Fprintf(&b, "Current Deck:\n%s\n", strings.Join(cardNames(player.CurrentDeck), ", "))

	if player.Clan != nil {
		fmt.Fprintf(&b, "\n%s\n", heavyRule)
		fmt.Fprintf(&b, "Clan: %s (%s)\n", player.Clan.Name, player.Clan.Tag)
		fmt.Fprintf(&b, "Role: %s\n", roleTitle(player.Role))

		if clan != nil {
			fmt.Fprintf(&b, "- Clan Score: %s\n", comma(clan.ClanScore))
			fmt.Fprintf(&b, "- War Trophies: %s\n", comma(clan.ClanWarTrophies))
			fmt.Fprintf(&b, "- Members: %d/50\n", clan.Members)
			fmt.Fprintf(&b, "- Required Trophies: %s\n", comma(clan.RequiredTrophies))
			fmt.Fprintf(&b, "- Weekly Donations: %s\n", comma(clan.DonationsPerWeek))
		}
	}

	if chests != nil && len(chests.Items) > 0 {
		fmt.Fprintf(&b, "\n%s\nUpcoming Chests:\n", heavyRule)
		items := chests.Items
		if len(items) > 12 {
			items = items[:12]
		}
		for _, chest := range items {
			fmt.Fprintf(&b, "  +%d: %s\n", chest.Index, chest.Name)
		}
	}

	if stats != nil && stats.Overall.Total > 0 {
		fmt.Fprintf(&b, "\n%s\nMONITORED SESSION STATS:\n", heavyRule)
		fmt.Fprintf(&b, "Total: %dW / %dL / %dD (%d games)\n",
			stats.Overall.Wins, stats.Overall.Losses, stats.Overall.Draws, stats.Overall.Total)
		fmt.Fprintf(&b, "Session Win Rate: %s%%\n", rate(stats.Overall.WinRate))

		if len(stats.ByMode) > 0 {
			fmt.Fprintf(&b, "\nBy Game Mode:\n")
			for _, mode := range modesByFrequency(stats.ByMode, 5) {
				fmt.Fprintf(&b, "  %s: %dW/%dL (%s%%)\n",
					mode.name, mode.stats.Wins, mode.stats.Losses, rate(mode.stats.WinRate))
			}
		}
	}

	return b.String()
}

// BattleNotice renders one battle for the account's monitoring channel.
func BattleNotice(entry domain.BattleEntry) string {
	var b strings.Builder

	playedAt := entry.PlayedAt
	if playedAt == "" {
		playedAt = "Unknown"
	}

	fmt.Fprintf(&b, "Time: %s\n\n", playedAt)
	fmt.Fprintf(&b, "%s%s\n", resultLabel(entry.Result), trophyDelta(entry.Player.TrophyChange))
	fmt.Fprintf(&b, "Mode: %s\n\n", entry.GameMode)
	fmt.Fprintf(&b, "Score: %d - %d\n\n", entry.Player.Crowns, entry.Opponent.Crowns)
	fmt.Fprintf(&b, "Opponent: %s\n", entry.Opponent.Name)
	fmt.Fprintf(&b, "Tag: %s\n", entry.Opponent.Tag)
	fmt.Fprintf(&b, "Trophies: %s\n\n", comma(entry.Opponent.Trophies))
	fmt.Fprintf(&b, "Your Deck:\n%s\n\n", strings.Join(entry.Player.Deck, ", "))
	fmt.Fprintf(&b, "Enemy Deck:\n%s\n", strings.Join(entry.Opponent.Deck, ", "))

	return b.String()
}

// RivalAlert is appended to a battle notice when the opponent has been faced
// before. rec already includes the battle being announced.
func RivalAlert(rec *domain.OpponentRecord) string {
	return fmt.Sprintf("RIVAL MATCH! %d total matches vs %s\nRecord: %dW/%dL (%s%% WR)",
		rec.Total, rec.Name, rec.Wins, rec.Losses, rate(rec.WinRate))
}

// SessionSummary is the one-line session record appended to battle notices.
func SessionSummary(stats domain.StatsSnapshot) string {
	return fmt.Sprintf("📊 Session: %dW/%dL (%s%% WR)",
		stats.Overall.Wins, stats.Overall.Losses, rate(stats.Overall.WinRate))
}

// ArenaChange announces a promotion to a new arena.
func ArenaChange(name, previous, current string, trophies int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 ARENA CHANGE!\n\n")
	fmt.Fprintf(&b, "%s has reached a new arena!\n\n", name)
	fmt.Fprintf(&b, "%s ➡️ %s\n\n", previous, current)
	fmt.Fprintf(&b, "Current Trophies: %s 🏆\n", comma(trophies))
	return b.String()
}

// MonitorEntry is one row of the monitored-players listing.
type MonitorEntry struct {
	Tag       string
	Name      string
	ChannelID int64
	Games     int
	WinRate   float64
}

// MonitorList renders the monitored-players listing.
func MonitorList(entries []MonitorEntry) string {
	if len(entries) == 0 {
		return "📋 No players are currently being monitored."
	}

	var b strings.Builder
	b.WriteString("📋 Monitored Players:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s (%s)\n", e.Name, e.Tag)
		fmt.Fprintf(&b, "  Topic #%d | %d games | %s%% WR\n", e.ChannelID, e.Games, rate(e.WinRate))
	}
	return b.String()
}

// RivalsList renders the repeat-opponent leaderboard, most-faced first.
func RivalsList(rivals []*domain.OpponentRecord, playerName string) string {
	if len(rivals) == 0 {
		return fmt.Sprintf("No repeat opponents found for %s.\nPlay more games to track rivalries!", playerName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRIVALS - Repeat Opponents for %s\n%s\n\n", heavyRule, playerName, heavyRule)

	shown := rivals
	if len(shown) > 15 {
		shown = shown[:15]
	}
	for i, rival := range shown {
		status := "Even"
		if rival.Wins > rival.Losses {
			status = "Dominating"
		} else if rival.Losses > rival.Wins {
			status = "Struggling"
		}

		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, rival.Name, rival.Tag)
		fmt.Fprintf(&b, "   Matches: %d | Record: %dW/%dL/%dD\n", rival.Total, rival.Wins, rival.Losses, rival.Draws)
		fmt.Fprintf(&b, "   Win Rate: %s%% | Status: %s\n", rate(rival.WinRate), status)

		if len(rival.ByMode) > 1 {
			parts := make([]string, 0, 3)
			for _, mode := range modesByFrequency(rival.ByMode, 3) {
				parts = append(parts, fmt.Sprintf("%s: %d", mode.name, mode.stats.Total))
			}
			fmt.Fprintf(&b, "   Modes: %s\n", strings.Join(parts, ", "))
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(rivals) > 15 {
		fmt.Fprintf(&b, "... and %d more rivals\n", len(rivals)-15)
	}
	return b.String()
}

// OpponentDetail renders the head-to-head report against one opponent.
func OpponentDetail(rec *domain.OpponentRecord) string {
	if rec == nil {
		return "No history found against this opponent."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nHEAD-TO-HEAD: vs %s\n%s\n\n", heavyRule, rec.Name, heavyRule)
	fmt.Fprintf(&b, "Opponent Tag: %s\n", rec.Tag)
	fmt.Fprintf(&b, "Total Matches: %d\n\n", rec.Total)
	fmt.Fprintf(&b, "Record: %dW / %dL / %dD\n", rec.Wins, rec.Losses, rec.Draws)
	fmt.Fprintf(&b, "Win Rate: %s%%\n\n", rate(rec.WinRate))

	if len(rec.ByMode) > 0 {
		fmt.Fprintf(&b, "BY GAME MODE:\n%s\n", lightRule)
		for _, mode := range modesByFrequency(rec.ByMode, 0) {
			fmt.Fprintf(&b, "\n%s:\n", mode.name)
			fmt.Fprintf(&b, "  Record: %dW / %dL / %dD\n", mode.stats.Wins, mode.stats.Losses, mode.stats.Draws)
			fmt.Fprintf(&b, "  Games: %d | Win Rate: %s%%\n", mode.stats.Total, rate(mode.stats.WinRate))
		}
	}

	if len(rec.Meetings) > 0 {
		fmt.Fprintf(&b, "\n%s\nRECENT MATCH HISTORY:\n%s\n", heavyRule, lightRule)
		meetings := rec.Meetings
		if len(meetings) > 10 {
			meetings = meetings[len(meetings)-10:]
		}
		// most recent first
		for i := len(meetings) - 1; i >= 0; i-- {
			m := meetings[i]
			playedAt := m.PlayedAt
			if playedAt == "" {
				playedAt = "Unknown time"
			}
			fmt.Fprintf(&b, "[%s] %d-%d | %s | %s\n",
				resultInitial(m.Result), m.PlayerCrowns, m.OpponentCrowns, m.Category, playedAt)
		}
	}

	return b.String()
}

// StatsReport renders the full session statistics for one account.
func StatsReport(tag string, stats domain.StatsSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Battle Statistics for %s\n%s\n\n", tag, heavyRule)
	fmt.Fprintf(&b, "Total: %dW / %dL / %dD\n", stats.Overall.Wins, stats.Overall.Losses, stats.Overall.Draws)
	fmt.Fprintf(&b, "Games Played: %d\n", stats.Overall.Total)
	fmt.Fprintf(&b, "Win Rate: %s%%\n\n", rate(stats.Overall.WinRate))
	fmt.Fprintf(&b, "BY GAME MODE:\n%s\n", lightRule)

	for _, mode := range modesByFrequency(stats.ByMode, 0) {
		fmt.Fprintf(&b, "\n%s:\n", mode.name)
		fmt.Fprintf(&b, "  Record: %dW / %dL / %dD\n", mode.stats.Wins, mode.stats.Losses, mode.stats.Draws)
		fmt.Fprintf(&b, "  Games: %d | Win Rate: %s%%\n", mode.stats.Total, rate(mode.stats.WinRate))
	}
	return b.String()
}

func resultLabel(result string) string {
	switch result {
	case domain.ResultWin:
		return "🏆 VICTORY"
	case domain.ResultLoss:
		return "💀 DEFEAT"
	default:
		return "🤝 DRAW"
	}
}

func resultInitial(result string) string {
	switch result {
	case domain.ResultWin:
		return "W"
	case domain.ResultLoss:
		return "L"
	default:
		return "D"
	}
}

func trophyDelta(change int) string {
	switch {
	case change > 0:
		return fmt.Sprintf(" (+%d)", change)
	case change < 0:
		return fmt.Sprintf(" (%d)", change)
	default:
		return ""
	}
}

func roleTitle(role string) string {
	switch role {
	case "", "member":
		return "Member"
	case "elder":
		return "Elder"
	case "coLeader":
		return "Co-Leader"
	case "leader":
		return "Leader"
	default:
		return role
	}
}

func cardNames(cards []clash.Card) []string {
	if len(cards) > 8 {
		cards = cards[:8]
	}
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		if c.Name == "" {
			names = append(names, "?")
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

// rate prints a stored win rate with its single decimal, "66.7" or "50.0".
func rate(winRate float64) string {
	return fmt.Sprintf("%.1f", winRate)
}

type modeEntry struct {
	name  string
	stats domain.ModeStats
}

// modesByFrequency orders modes by games played, busiest first, name as the
// tie-break. limit 0 means all.
func modesByFrequency(byMode map[string]domain.ModeStats, limit int) []modeEntry {
	modes := make([]modeEntry, 0, len(byMode))
	for name, stats := range byMode {
		modes = append(modes, modeEntry{name: name, stats: stats})
	}
	sort.Slice(modes, func(i, j int) bool {
		if modes[i].stats.Total != modes[j].stats.Total {
			return modes[i].stats.Total > modes[j].stats.Total
		}
		return modes[i].name < modes[j].name
	})
	if limit > 0 && len(modes) > limit {
		modes = modes[:limit]
	}
	return modes
}
