// Package telegram is a minimal Bot API client covering what the monitor
// needs: long-polled updates, forum topics and pinned messages.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
)

type Client struct {
	baseURL string
	token   string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.TelegramBaseURL,
		token:   cfg.TelegramToken,
		client: &fasthttp.Client{
			// read timeout must outlive a full getUpdates long poll
			ReadTimeout:         constants.TelegramPollTimeout + 10*time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID       int64  `json:"message_id"`
	MessageThreadID int64  `json:"message_thread_id"`
	Text            string `json:"text"`
	Chat            Chat   `json:"chat"`
	From            *User  `json:"from"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

// GetUpdates long-polls for new updates after offset. It blocks for up to
// constants.TelegramPollTimeout when nothing is pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := struct {
		Offset         int64    `json:"offset"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{
		Offset:         offset,
		Timeout:        int(constants.TelegramPollTimeout.Seconds()),
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts text to a chat. threadID 0 targets the general chat,
// anything else a forum topic.
func (c *Client) SendMessage(ctx context.Context, chatID, threadID int64, text string) (*Message, error) {
	payload := struct {
		ChatID          int64  `json:"chat_id"`
		MessageThreadID int64  `json:"message_thread_id,omitempty"`
		Text            string `json:"text"`
	}{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	payload := struct {
		ChatID    int64  `json:"chat_id"`
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
	}{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64, disableNotification bool) error {
	payload := struct {
		ChatID              int64 `json:"chat_id"`
		MessageID           int64 `json:"message_id"`
		DisableNotification bool  `json:"disable_notification"`
	}{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: disableNotification,
	}
	return c.call(ctx, "pinChatMessage", payload, nil)
}

func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string) (*ForumTopic, error) {
	payload := struct {
		ChatID int64  `json:"chat_id"`
		Name   string `json:"name"`
	}{
		ChatID: chatID,
		Name:   name,
	}

	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", payload, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *Client) CloseForumTopic(ctx context.Context, chatID, threadID int64) error {
	payload := struct {
		ChatID          int64 `json:"chat_id"`
		MessageThreadID int64 `json:"message_thread_id"`
	}{
		ChatID:          chatID,
		MessageThreadID: threadID,
	}
	return c.call(ctx, "closeForumTopic", payload, nil)
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s rejected: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// SplitMessage chunks text so every piece fits the transport limit, cutting
// only on rune boundaries.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
