package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"royale-monitor/internal/config"
	"royale-monitor/internal/notify"
)

// MaxMessageLen is the largest message body the sink will send. Telegram
// caps messages at 4096 characters; staying under leaves headroom for the
// callers that prepend banners.
const MaxMessageLen = 4000

// Sink binds the monitor's notification surface to one Telegram group with
// topics enabled. Channels are forum topics inside that group.
type Sink struct {
	client *Client
	chatID int64
	logger zerolog.Logger
}

func NewSink(client *Client, cfg *config.Config, logger zerolog.Logger) notify.Notifier {
	return &Sink{
		client: client,
		chatID: cfg.GroupChatID,
		logger: logger,
	}
}

func (s *Sink) OpenChannel(ctx context.Context, name string) (int64, error) {
	topic, err := s.client.CreateForumTopic(ctx, s.chatID, name)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("name", name).Int64("topic_id", topic.MessageThreadID).Msg("forum topic created")
	return topic.MessageThreadID, nil
}

func (s *Sink) CloseChannel(ctx context.Context, channelID int64) error {
	return s.client.CloseForumTopic(ctx, s.chatID, channelID)
}

func (s *Sink) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	msg, err := s.client.SendMessage(ctx, s.chatID, channelID, truncate(text))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (s *Sink) Pin(ctx context.Context, messageID int64) error {
	return s.client.PinChatMessage(ctx, s.chatID, messageID, true)
}

func (s *Sink) Edit(ctx context.Context, messageID int64, text string) error {
	return s.client.EditMessageText(ctx, s.chatID, messageID, truncate(text))
}

func truncate(text string) string {
	return SplitMessage(text, MaxMessageLen)[0]
}
