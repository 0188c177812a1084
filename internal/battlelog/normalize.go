// Package battlelog holds the pure ingestion core: normalizing raw battles
// into canonical entries and rebuilding derived statistics from an account's
// battle log. Nothing here performs I/O.
package battlelog

import (
	"strings"
	"time"

	"royale-monitor/internal/clash"
	"royale-monitor/internal/domain"
)

const battleTimeLayout = "20060102T150405.000Z"

const deckSize = 8

// Normalize converts one raw battle into the canonical entry for the given
// account tag. A battle that does not mention the tag on either side is still
// recorded, attributed to the first listed team member; its outcome stays a
// draw because no crown comparison applies to the tracked player.
func Normalize(b clash.Battle, accountTag string) domain.BattleEntry {
	player, opponent, found := resolveSides(b, accountTag)

	result := domain.ResultDraw
	if found {
		result = outcome(player.Crowns, opponent.Crowns)
	}

	return domain.BattleEntry{
		BattleTime: b.BattleTime,
		PlayedAt:   formatBattleTime(b.BattleTime),
		GameMode:   orUnknown(b.GameMode.Name),
		Category:   Categorize(b),
		Type:       orUnknown(b.Type),
		Arena:      orUnknown(b.Arena.Name),
		Result:     result,
		Player:     summarize(player, true),
		Opponent:   summarize(opponent, false),
	}
}

// Categorize buckets a battle into one coarse mode category. Checks run in
// priority order over the battle type and declared mode name; the first
// keyword hit wins.
func Categorize(b clash.Battle) string {
	battleType := strings.ToLower(b.Type)
	gameMode := strings.ToLower(b.GameMode.Name)

	switch {
	case strings.Contains(gameMode, "2v2") || strings.Contains(battleType, "2v2"):
		return "2v2"
	case strings.Contains(battleType, "friendly") || strings.Contains(gameMode, "friendly"):
		return "Friendly"
	case strings.Contains(battleType, "challenge") || strings.Contains(gameMode, "challenge"):
		return "Challenge"
	case strings.Contains(battleType, "tournament") || strings.Contains(gameMode, "tournament"):
		return "Tournament"
	case strings.Contains(battleType, "clanwar") || strings.Contains(gameMode, "war"):
		return "Clan War"
	case strings.Contains(gameMode, "party"):
		return "Party Mode"
	case strings.Contains(battleType, "pathoflegend") || strings.Contains(battleType, "ladder"):
		return "Ladder"
	case b.GameMode.Name != "":
		return b.GameMode.Name
	default:
		return "1v1"
	}
}

// OpponentTag returns the normalized tag of the direct opponent, or "" when
// the account tag appears on neither side. Unlike Normalize it never falls
// back to a guessed side; rival detection must not fire on guesses.
func OpponentTag(b clash.Battle, accountTag string) string {
	for _, side := range b.Team {
		if strings.EqualFold(side.Tag, accountTag) {
			return strings.ToUpper(first(b.Opponent).Tag)
		}
	}
	for _, side := range b.Opponent {
		if strings.EqualFold(side.Tag, accountTag) {
			return strings.ToUpper(first(b.Team).Tag)
		}
	}
	return ""
}

func resolveSides(b clash.Battle, accountTag string) (clash.BattleSide, clash.BattleSide, bool) {
	for _, side := range b.Team {
		if strings.EqualFold(side.Tag, accountTag) {
			return side, first(b.Opponent), true
		}
	}
	for _, side := range b.Opponent {
		if strings.EqualFold(side.Tag, accountTag) {
			return side, first(b.Team), true
		}
	}
	return first(b.Team), first(b.Opponent), false
}

func first(sides []clash.BattleSide) clash.BattleSide {
	if len(sides) == 0 {
		return clash.BattleSide{}
	}
	return sides[0]
}

func outcome(playerCrowns, opponentCrowns int) string {
	switch {
	case playerCrowns > opponentCrowns:
		return domain.ResultWin
	case playerCrowns < opponentCrowns:
		return domain.ResultLoss
	default:
		return domain.ResultDraw
	}
}

func summarize(side clash.BattleSide, includeTrophyDelta bool) domain.PlayerSummary {
	s := domain.PlayerSummary{
		Name:     orUnknown(side.Name),
		Tag:      side.Tag,
		Crowns:   side.Crowns,
		Trophies: side.StartingTrophies,
		Deck:     deckNames(side.Cards),
	}
	if includeTrophyDelta {
		s.TrophyChange = side.TrophyChange
	}
	return s
}

func deckNames(cards []clash.Card) []string {
	if len(cards) > deckSize {
		cards = cards[:deckSize]
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

// formatBattleTime renders the raw API timestamp for humans. Anything that
// fails to parse is passed through verbatim rather than rejected.
func formatBattleTime(raw string) string {
	dt, err := time.Parse(battleTimeLayout, raw)
	if err != nil {
		return raw
	}
	return dt.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
