package battlelog

import (
	"math"

	"royale-monitor/internal/domain"
)

// ComputeStats tallies the whole log from scratch. Only the multiset of
// entries matters, not their order. Results outside win/loss/draw still count
// toward totals so a malformed entry cannot silently vanish.
func ComputeStats(battles []domain.BattleEntry) domain.StatsSnapshot {
	snap := domain.StatsSnapshot{ByMode: make(map[string]domain.ModeStats)}

	for _, b := range battles {
		cat := categoryOf(b)
		tally(&snap.Overall, b.Result)

		mode := snap.ByMode[cat]
		tally(&mode, b.Result)
		snap.ByMode[cat] = mode
	}

	snap.Overall.WinRate = winRate(snap.Overall.Wins, snap.Overall.Total)
	for cat, mode := range snap.ByMode {
		mode.WinRate = winRate(mode.Wins, mode.Total)
		snap.ByMode[cat] = mode
	}
	return snap
}

func tally(s *domain.ModeStats, result string) {
	s.Total++
	switch result {
	case domain.ResultWin:
		s.Wins++
	case domain.ResultLoss:
		s.Losses++
	case domain.ResultDraw:
		s.Draws++
	}
}

// winRate is wins over total as a percentage rounded to one decimal.
// An empty bucket reports 0.0 rather than dividing by zero.
func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*1000) / 10
}

func categoryOf(b domain.BattleEntry) string {
	if b.Category == "" {
		return "Unknown"
	}
	return b.Category
}
