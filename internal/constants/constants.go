package constants

import "time"

const (
	PollInterval      = 60 * time.Second
	AccountPollDelay  = 2 * time.Second
	SummaryBatchDelay = 30 * time.Second
)

const (
	BattleLogLimit = 100 // retained battles per account, oldest evicted first
	RivalThreshold = 2   // meetings before an opponent counts as a rival
)

const (
	ExternalAPITimeout = 10 * time.Second
	ClashRetryAttempts = 3
	ClashRetryBackoff  = 500 * time.Millisecond
	ClashRequestGap    = 100 * time.Millisecond // upstream allows ~10 req/s per key
)

const (
	TelegramPollTimeout = 30 * time.Second
	TelegramSendTimeout = 15 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
