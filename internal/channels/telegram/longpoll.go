package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aatumaykin/ocalt/internal/channels"
	"github.com/aatumaykin/ocalt/internal/logger"
)

var errUpdatesClosed = errors.New("updates channel closed")

// pollTimeoutSeconds is the server-side long polling timeout.
const pollTimeoutSeconds = 30

// Listen receives updates until ctx is cancelled. A failed start or a
// closed update stream is retried after the reconnect delay.
func (c *Connector) Listen(ctx context.Context) error {
	initialized := false
	for {
		var err error
		if !initialized {
			err = c.identify(ctx)
			initialized = err == nil
		}
		if initialized {
			err = c.poll(ctx)
		}
		if ctx.Err() != nil {
			c.logger.Info("long polling stopped")
			return nil
		}
		c.logger.Warn("long polling interrupted, reconnecting",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "delay", Value: c.reconnectDelay.String()})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Connector) identify(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	c.logger.Info("telegram bot initialized",
		logger.Field{Key: "bot_id", Value: me.ID},
		logger.Field{Key: "username", Value: me.Username})
	return nil
}

func (c *Connector) poll(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: pollTimeoutSeconds,
	})
	if err != nil {
		return err
	}

	c.logger.Info("long polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errUpdatesClosed
			}
			c.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate передаёт текстовые сообщения диспетчеру в отдельной горутине:
// ответ агента может занять минуты
func (c *Connector) handleUpdate(ctx context.Context, update telego.Update) {
	msg, ok := toInbound(update)
	if !ok || c.handler == nil {
		return
	}
	go c.handler.Handle(ctx, msg, c)
}

func toInbound(update telego.Update) (channels.Inbound, bool) {
	m := update.Message
	if m == nil || m.Text == "" {
		return channels.Inbound{}, false
	}

	in := channels.Inbound{
		Channel:   ChannelName,
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		MessageID: strconv.Itoa(m.MessageID),
		Text:      m.Text,
	}
	if m.From != nil {
		in.SenderID = strconv.FormatInt(m.From.ID, 10)
	}
	if m.ReplyToMessage != nil {
		in.ReplyToID = strconv.Itoa(m.ReplyToMessage.MessageID)
	}
	return in, true
}
