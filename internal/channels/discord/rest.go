package discord

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/aatumaykin/ocalt/internal/channels"
)

// Типы каналов Discord
const (
	ChannelTypeText     = 0
	ChannelTypeCategory = 4
)

// Channel is a guild channel.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	ParentID string `json:"parent_id,omitempty"`
}

// User is a message author.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// MessageReference points at the message a reply answers.
type MessageReference struct {
	MessageID       string `json:"message_id"`
	FailIfNotExists bool   `json:"fail_if_not_exists"`
}

// Message is a channel message, sent over REST or received via the gateway.
type Message struct {
	ID               string            `json:"id,omitempty"`
	ChannelID        string            `json:"channel_id,omitempty"`
	GuildID          string            `json:"guild_id,omitempty"`
	Content          string            `json:"content"`
	Author           *User             `json:"author,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// apiError is the JSON error body of the REST API.
type apiError struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
}

// Client is a minimal Discord REST client.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a REST client. messagesPerSecond paces message sends;
// zero disables pacing.
func NewClient(baseURL, token string, messagesPerSecond float64, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bot "+token).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "DiscordBot (https://github.com/aatumaykin/ocalt, 1)")

	limit := rate.Inf
	if messagesPerSecond > 0 {
		limit = rate.Limit(messagesPerSecond)
	}

	return &Client{
		http:    client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// CreateMessage posts content to channelID, optionally as a reply to replyTo.
func (c *Client) CreateMessage(ctx context.Context, channelID, content, replyTo string) (Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Message{}, err
	}

	body := Message{Content: content}
	if replyTo != "" {
		body.MessageReference = &MessageReference{MessageID: replyTo}
	}

	var sent Message
	err := c.do(ctx, http.MethodPost, "/channels/{id}/messages", channelID, body, &sent)
	return sent, err
}

// TriggerTyping shows the typing indicator in channelID.
func (c *Client) TriggerTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/{id}/typing", channelID, nil, nil)
}

// GuildChannels lists every channel of guildID.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var list []Channel
	err := c.do(ctx, http.MethodGet, "/guilds/{id}/channels", guildID, nil, &list)
	return list, err
}

// CreateTextChannel creates a text channel, under parentID when set.
func (c *Client) CreateTextChannel(ctx context.Context, guildID, name, parentID string) (Channel, error) {
	body := Channel{Name: name, Type: ChannelTypeText, ParentID: parentID}

	var created Channel
	err := c.do(ctx, http.MethodPost, "/guilds/{id}/channels", guildID, body, &created)
	return created, err
}

func (c *Client) do(ctx context.Context, method, route, id string, body, result any) error {
	var apiErr apiError
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, route)
	if err != nil {
		return fmt.Errorf("discord %s %s: %w", method, route, err)
	}
	if resp.IsError() {
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return &channels.DiscordErrorDetails{
			StatusCode:    resp.StatusCode(),
			Code:          apiErr.Code,
			Message:       apiErr.Message,
			RetryAfterSec: apiErr.RetryAfter,
			Route:         method + " " + route,
		}
	}
	return nil
}
