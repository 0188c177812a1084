package battlelog

import (
	"sort"

	"royale-monitor/internal/clash"
)

// Raw battle times ("20060102T150405.000Z") compare lexicographically in
// chronological order, so plain string comparison is the ordering used
// throughout.

// SelectNewer returns the battles strictly newer than cursor, oldest first.
// The whole page is scanned; input order does not matter. An empty cursor
// selects everything.
func SelectNewer(battles []clash.Battle, cursor string) []clash.Battle {
	var newer []clash.Battle
	for _, b := range battles {
		if b.BattleTime != "" && b.BattleTime > cursor {
			newer = append(newer, b)
		}
	}
	sortByTime(newer)
	return newer
}

// SortOldestFirst returns a copy of battles ordered oldest first.
func SortOldestFirst(battles []clash.Battle) []clash.Battle {
	sorted := make([]clash.Battle, len(battles))
	copy(sorted, battles)
	sortByTime(sorted)
	return sorted
}

// NewestBattleTime returns the greatest raw battle time on the page, or ""
// for an empty page.
func NewestBattleTime(battles []clash.Battle) string {
	newest := ""
	for _, b := range battles {
		if b.BattleTime > newest {
			newest = b.BattleTime
		}
	}
	return newest
}

func sortByTime(battles []clash.Battle) {
	sort.SliceStable(battles, func(i, j int) bool {
		return battles[i].BattleTime < battles[j].BattleTime
	})
}
