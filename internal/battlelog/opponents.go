package battlelog

import (
	"sort"
	"strings"

	"royale-monitor/internal/domain"
)

// ComputeOpponents rebuilds the per-opponent ledger from the whole log.
// Opponents are keyed by uppercased tag; entries without an opponent tag are
// left out of the ledger entirely.
func ComputeOpponents(battles []domain.BattleEntry) map[string]*domain.OpponentRecord {
	opponents := make(map[string]*domain.OpponentRecord)

	for _, b := range battles {
		tag := strings.ToUpper(b.Opponent.Tag)
		if tag == "" {
			continue
		}

		rec, ok := opponents[tag]
		if !ok {
			rec = &domain.OpponentRecord{
				Tag:    tag,
				ByMode: make(map[string]domain.ModeStats),
			}
			opponents[tag] = rec
		}

		// last-seen display name wins
		rec.Name = b.Opponent.Name

		rec.Total++
		switch b.Result {
		case domain.ResultWin:
			rec.Wins++
		case domain.ResultLoss:
			rec.Losses++
		case domain.ResultDraw:
			rec.Draws++
		}

		cat := categoryOf(b)
		mode := rec.ByMode[cat]
		tally(&mode, b.Result)
		rec.ByMode[cat] = mode

		rec.Meetings = append(rec.Meetings, domain.OpponentMeeting{
			BattleTime:     b.BattleTime,
			PlayedAt:       b.PlayedAt,
			Result:         b.Result,
			Category:       cat,
			PlayerCrowns:   b.Player.Crowns,
			OpponentCrowns: b.Opponent.Crowns,
		})
	}

	for _, rec := range opponents {
		rec.WinRate = winRate(rec.Wins, rec.Total)
		for cat, mode := range rec.ByMode {
			mode.WinRate = winRate(mode.Wins, mode.Total)
			rec.ByMode[cat] = mode
		}
	}
	return opponents
}

// RepeatOpponents filters the ledger down to opponents met at least
// minMatches times, most frequent first. Ties order by tag so the result is
// deterministic.
func RepeatOpponents(opponents map[string]*domain.OpponentRecord, minMatches int) []*domain.OpponentRecord {
	rivals := make([]*domain.OpponentRecord, 0, len(opponents))
	for _, rec := range opponents {
		if rec.Total >= minMatches {
			rivals = append(rivals, rec)
		}
	}
	sort.Slice(rivals, func(i, j int) bool {
		if rivals[i].Total != rivals[j].Total {
			return rivals[i].Total > rivals[j].Total
		}
		return rivals[i].Tag < rivals[j].Tag
	})
	return rivals
}
