package domain

const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

type PlayerSummary struct {
	Name         string   `json:"name"`
	Tag          string   `json:"tag"`
	Crowns       int      `json:"crowns"`
	Trophies     int      `json:"trophies"`
	TrophyChange int      `json:"trophy_change,omitempty"`
	Deck         []string `json:"deck,omitempty"`
}

type BattleEntry struct {
	BattleTime string        `json:"battle_time"` // raw API timestamp, dedup and ordering key
	PlayedAt   string        `json:"played_at"`   // human-readable UTC
	GameMode   string        `json:"game_mode"`   // mode name as declared by the API
	Category   string        `json:"category"`    // classified bucket, see battlelog.Categorize
	Type       string        `json:"type"`
	Arena      string        `json:"arena"`
	Result     string        `json:"result"` // "win", "loss" or "draw"
	Player     PlayerSummary `json:"player"`
	Opponent   PlayerSummary `json:"opponent"`
}

type ModeStats struct {
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Draws   int     `json:"draws"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

type StatsSnapshot struct {
	Overall ModeStats            `json:"overall"`
	ByMode  map[string]ModeStats `json:"by_mode"`
}

type OpponentMeeting struct {
	BattleTime     string `json:"battle_time"`
	PlayedAt       string `json:"played_at"`
	Result         string `json:"result"`
	Category       string `json:"category"`
	PlayerCrowns   int    `json:"player_crowns"`
	OpponentCrowns int    `json:"opponent_crowns"`
}

type OpponentRecord struct {
	Name     string               `json:"name"`
	Tag      string               `json:"tag"`
	Wins     int                  `json:"wins"`
	Losses   int                  `json:"losses"`
	Draws    int                  `json:"draws"`
	Total    int                  `json:"total"`
	WinRate  float64              `json:"win_rate"`
	ByMode   map[string]ModeStats `json:"by_mode"`
	Meetings []OpponentMeeting    `json:"meetings"`
}

// AccountRecord is the persisted unit for one tracked account. Battles is
// the source of truth; Stats and Opponents are recomputed from it on every
// ingest and never updated incrementally.
type AccountRecord struct {
	AccountTag string                     `json:"account_id"`
	Battles    []BattleEntry              `json:"battles"`
	Stats      StatsSnapshot              `json:"stats"`
	Opponents  map[string]*OpponentRecord `json:"opponent_stats"`
}
