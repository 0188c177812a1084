// Package notify defines the outbound notification surface. The monitor
// core talks to this interface only; the Telegram binding lives in
// internal/telegram.
package notify

import "context"

// Notifier delivers monitor output to per-account channels inside one chat
// surface. Channel IDs are opaque to callers and stable across restarts.
type Notifier interface {
	// OpenChannel creates a dedicated channel for an account and returns
	// its ID.
	OpenChannel(ctx context.Context, name string) (int64, error)

	// CloseChannel closes an account's channel when monitoring stops.
	CloseChannel(ctx context.Context, channelID int64) error

	// Send posts text to a channel and returns the message ID, for later
	// pinning or editing. Text over the transport's size limit is truncated.
	Send(ctx context.Context, channelID int64, text string) (int64, error)

	// Pin pins a previously sent message without notifying members.
	Pin(ctx context.Context, messageID int64) error

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, messageID int64, text string) error
}
