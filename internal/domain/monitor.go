package domain

// MonitorState is one row of the monitored-accounts registry, keyed by
// normalized player tag.
type MonitorState struct {
	Name            string `json:"name"`
	ChannelID       int64  `json:"channel_id"`
	LastBattleTime  string `json:"last_battle_time"` // newest raw battle time seen, "" until first poll
	LastArena       string `json:"last_arena,omitempty"`
	PinnedMessageID int64  `json:"pinned_message_id,omitempty"`
}
