// Package discord is the Discord adapter: one text channel per agent,
// REST for sending and the gateway websocket for receiving.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/ocalt/internal/channels"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/retry"
)

// ChannelName identifies the adapter in logs, metrics and inbound messages.
const ChannelName = "discord"

// Connector represents the Discord bot connector
type Connector struct {
	cfg      config.DiscordConfig
	rest     *Client
	channels *ChannelMap
	routes   *channels.RoutingMap
	handler  channels.Handler
	gateway  *Gateway
	metrics  *metrics.Metrics
	logger   *logger.Logger
	retry    retry.Config
}

// New creates a Discord connector. handler may be nil when inbound
// routing is not wanted.
func New(cfg config.DiscordConfig, rest *Client, chmap *ChannelMap, routes *channels.RoutingMap, handler channels.Handler, m *metrics.Metrics, log *logger.Logger) *Connector {
	if routes == nil {
		routes = channels.NewRoutingMap(cfg.RoutingLimit)
	}
	delay := time.Duration(cfg.ReconnectDelaySeconds) * time.Second
	if delay <= 0 {
		delay = constants.DefaultReconnectDelay
	}

	c := &Connector{
		cfg:      cfg,
		rest:     rest,
		channels: chmap,
		routes:   routes,
		handler:  handler,
		metrics:  m,
		logger:   log.With(logger.Field{Key: "channel", Value: ChannelName}),
		retry:    retry.Config{MaxAttempts: constants.DefaultSendAttempts},
	}
	c.gateway = NewGateway(cfg.GatewayURL, cfg.Token, delay, c.onMessage, c.logger)
	return c
}

// EnsureChannels makes sure every agent has a text channel. A cached map
// covering all agents is reused without calling the API; otherwise
// same-named text channels are adopted and missing ones created.
func (c *Connector) EnsureChannels(ctx context.Context, agents []string) error {
	missing := c.channels.Missing(agents)
	if len(missing) == 0 {
		c.logger.Debug("channel map is complete", logger.Field{Key: "agents", Value: len(agents)})
		return nil
	}

	existing, err := c.rest.GuildChannels(ctx, c.cfg.GuildID)
	if err != nil {
		return fmt.Errorf("failed to list guild channels: %w", err)
	}
	byName := make(map[string]string, len(existing))
	for _, ch := range existing {
		if ch.Type == ChannelTypeText {
			byName[ch.Name] = ch.ID
		}
	}

	for _, agent := range missing {
		name := channelNameFor(agent)
		if id, ok := byName[name]; ok {
			c.channels.Set(agent, id)
			c.logger.Info("reusing channel", logger.Field{Key: "agent", Value: agent}, logger.Field{Key: "channel_id", Value: id})
			continue
		}

		created, err := c.rest.CreateTextChannel(ctx, c.cfg.GuildID, name, c.cfg.CategoryID)
		if err != nil {
			return fmt.Errorf("failed to create channel for agent %s: %w", agent, err)
		}
		c.channels.Set(agent, created.ID)
		c.logger.Info("channel created", logger.Field{Key: "agent", Value: agent}, logger.Field{Key: "channel_id", Value: created.ID})
	}

	return c.channels.Save()
}

// SendAgentMessage posts a job result into the agent's channel and returns
// the id of the first message.
func (c *Connector) SendAgentMessage(ctx context.Context, agent, job, text string) (string, error) {
	channelID, ok := c.channels.Get(agent)
	if !ok {
		err := fmt.Errorf("no discord channel for agent %s", agent)
		c.metrics.RecordMessage(ChannelName, "job", err)
		return "", err
	}

	ids, err := c.send(ctx, channelID, channels.FormatHeader(agent, job), text, "")
	c.metrics.RecordMessage(ChannelName, "job", err)
	c.track(ids, agent)
	if len(ids) == 0 {
		return "", err
	}
	return ids[0], err
}

// Notice sends plain text into the channel msg came from.
func (c *Connector) Notice(ctx context.Context, msg channels.Inbound, text string) error {
	_, err := c.send(ctx, msg.ChatID, "", text, msg.MessageID)
	c.metrics.RecordMessage(ChannelName, "notice", err)
	return err
}

// Reply answers msg on behalf of agent and tracks the reply for routing.
func (c *Connector) Reply(ctx context.Context, msg channels.Inbound, agent, text string) error {
	ids, err := c.send(ctx, msg.ChatID, channels.FormatReply(agent), text, msg.MessageID)
	c.metrics.RecordMessage(ChannelName, "reply", err)
	c.track(ids, agent)
	return err
}

// Typing shows the typing indicator in the channel msg came from.
func (c *Connector) Typing(ctx context.Context, msg channels.Inbound) error {
	return c.rest.TriggerTyping(ctx, msg.ChatID)
}

// Listen runs the gateway until ctx is cancelled.
func (c *Connector) Listen(ctx context.Context) error {
	return c.gateway.Run(ctx)
}

// send режет текст на части по лимиту Discord; заголовок и ссылка на ответ только у первой
func (c *Connector) send(ctx context.Context, channelID, header, text, replyTo string) ([]string, error) {
	chunks := channels.Messages(header, text, constants.DiscordMessageLimit)
	ids := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		ref := ""
		if i == 0 {
			ref = replyTo
		}
		var sent Message
		err := retry.Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
			var err error
			sent, err = c.rest.CreateMessage(ctx, channelID, chunk, ref)
			return err
		})
		if err != nil {
			c.logger.Error("failed to send message", err, channels.LogFields(err)...)
			return ids, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		ids = append(ids, sent.ID)
	}
	return ids, nil
}

func (c *Connector) track(ids []string, agent string) {
	if len(ids) == 0 {
		return
	}
	c.routes.Remember(ids[0], agent, time.Now())
	if err := c.routes.Save(); err != nil {
		c.logger.Warn("failed to persist routing map", logger.Field{Key: "error", Value: err.Error()})
	}
}

// onMessage превращает MESSAGE_CREATE во входящее сообщение диспетчера
func (c *Connector) onMessage(ctx context.Context, m Message) {
	if c.handler == nil || m.Content == "" {
		return
	}
	if c.cfg.GuildID != "" && m.GuildID != "" && m.GuildID != c.cfg.GuildID {
		return
	}

	in := channels.Inbound{
		Channel:   ChannelName,
		SenderID:  m.Author.ID,
		ChatID:    m.ChannelID,
		MessageID: m.ID,
		Text:      m.Content,
	}
	if m.MessageReference != nil {
		in.ReplyToID = m.MessageReference.MessageID
	}
	if agent, ok := c.channels.AgentFor(m.ChannelID); ok {
		in.ChannelAgent = agent
	}
	go c.handler.Handle(ctx, in, c)
}
