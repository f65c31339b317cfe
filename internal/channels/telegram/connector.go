// Package telegram is the Telegram adapter: job notifications go to one
// configured chat, inbound messages are long-polled and handed to the
// channel dispatcher.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	telegoapi "github.com/mymmrac/telego/telegoapi"

	"github.com/aatumaykin/ocalt/internal/channels"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/retry"
)

// ChannelName identifies the adapter in logs, metrics and inbound messages.
const ChannelName = "telegram"

// Connector represents the Telegram bot connector
type Connector struct {
	cfg            config.TelegramConfig
	bot            BotInterface
	routes         *channels.RoutingMap
	handler        channels.Handler
	metrics        *metrics.Metrics
	logger         *logger.Logger
	sendTimeout    time.Duration
	reconnectDelay time.Duration
	retry          retry.Config
}

// New creates a Telegram connector. handler may be nil when inbound
// routing is not wanted.
func New(cfg config.TelegramConfig, bot BotInterface, routes *channels.RoutingMap, handler channels.Handler, m *metrics.Metrics, log *logger.Logger) *Connector {
	c := &Connector{
		cfg:            cfg,
		bot:            bot,
		routes:         routes,
		handler:        handler,
		metrics:        m,
		logger:         log.With(logger.Field{Key: "channel", Value: ChannelName}),
		sendTimeout:    time.Duration(cfg.SendTimeoutSeconds) * time.Second,
		reconnectDelay: time.Duration(cfg.ReconnectDelaySeconds) * time.Second,
		retry:          retry.Config{MaxAttempts: constants.DefaultSendAttempts},
	}
	if c.sendTimeout <= 0 {
		c.sendTimeout = constants.DefaultSendTimeout
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = constants.DefaultReconnectDelay
	}
	if c.routes == nil {
		c.routes = channels.NewRoutingMap(cfg.RoutingLimit)
	}
	return c
}

// SendAgentMessage sends a job result to the configured chat and returns
// the id of the first message.
func (c *Connector) SendAgentMessage(ctx context.Context, agent, job, text string) (string, error) {
	chatID := parseChatID(c.cfg.ChatID)

	ids, err := c.send(ctx, chatID, channels.FormatHeader(agent, job), text, 0)
	c.metrics.RecordMessage(ChannelName, "job", err)
	c.track(ids, agent)
	if err != nil {
		return firstID(ids), err
	}

	c.logger.Info("job message sent",
		logger.Field{Key: "agent", Value: agent},
		logger.Field{Key: "job", Value: job},
		logger.Field{Key: "chunks", Value: len(ids)})
	return firstID(ids), nil
}

// Notice sends plain text into the chat msg came from.
func (c *Connector) Notice(ctx context.Context, msg channels.Inbound, text string) error {
	_, err := c.send(ctx, parseChatID(msg.ChatID), "", text, atoi(msg.MessageID))
	c.metrics.RecordMessage(ChannelName, "notice", err)
	return err
}

// Reply sends an agent reply as a reply to msg and tracks it for routing.
func (c *Connector) Reply(ctx context.Context, msg channels.Inbound, agent, text string) error {
	ids, err := c.send(ctx, parseChatID(msg.ChatID), channels.FormatReply(agent), text, atoi(msg.MessageID))
	c.metrics.RecordMessage(ChannelName, "reply", err)
	c.track(ids, agent)
	return err
}

// Typing shows the typing indicator in the chat msg came from.
func (c *Connector) Typing(ctx context.Context, msg channels.Inbound) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	return c.bot.SendChatAction(sendCtx, &telego.SendChatActionParams{
		ChatID: parseChatID(msg.ChatID),
		Action: telego.ChatActionTyping,
	})
}

// send отправляет текст частями не длиннее лимита Telegram, заголовок идёт
// с первой частью. Ответ (replyTo) прикрепляется только к первой части.
func (c *Connector) send(ctx context.Context, chatID telego.ChatID, header, text string, replyTo int) ([]string, error) {
	chunks := channels.Messages(header, text, constants.TelegramMessageLimit)
	ids := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		params := &telego.SendMessageParams{
			ChatID: chatID,
			Text:   chunk,
		}
		if i == 0 && replyTo != 0 {
			params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
		}

		var sent *telego.Message
		err := retry.Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
			sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
			defer cancel()
			var err error
			sent, err = c.bot.SendMessage(sendCtx, params)
			if err != nil {
				return errorDetails(err, chatID.ID)
			}
			return nil
		})
		if err != nil {
			c.logger.Error("failed to send message", err, channels.LogFields(err)...)
			return ids, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		ids = append(ids, strconv.Itoa(sent.MessageID))
	}
	return ids, nil
}

// track remembers the first message of a send for reply routing.
func (c *Connector) track(ids []string, agent string) {
	if len(ids) == 0 {
		return
	}
	c.routes.Remember(firstID(ids), agent, time.Now())
	if err := c.routes.Save(); err != nil {
		c.logger.Warn("failed to persist routing map", logger.Field{Key: "error", Value: err.Error()})
	}
}

// errorDetails разворачивает ошибку Bot API в TelegramErrorDetails
func errorDetails(err error, chatID int64) error {
	var telErr *telegoapi.Error
	if !errors.As(err, &telErr) {
		return err
	}

	details := &channels.TelegramErrorDetails{
		ErrorCode:   telErr.ErrorCode,
		Description: telErr.Description,
		ChatID:      chatID,
	}
	if telErr.Parameters != nil {
		details.RetryAfterSec = telErr.Parameters.RetryAfter
	}
	return details
}

// parseChatID accepts a numeric id or an @username.
func parseChatID(s string) telego.ChatID {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	return telego.ChatID{Username: s}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func firstID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
