package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/workspace"
)

// Результат маршрутизации для метрик, дополняет Via*
const resultUnauthorized = "unauthorized"

// typingInterval is shorter than the few seconds a chat keeps the indicator.
const typingInterval = 4 * time.Second

// Responder is the adapter side of an inbound conversation.
type Responder interface {
	// Notice sends plain text to the chat msg came from.
	Notice(ctx context.Context, msg Inbound, text string) error
	// Reply sends an agent reply and tracks it for reply routing.
	Reply(ctx context.Context, msg Inbound, agent, text string) error
	// Typing shows a typing indicator in the chat msg came from.
	Typing(ctx context.Context, msg Inbound) error
}

// Handler processes inbound messages. Dispatcher is the production Handler.
type Handler interface {
	Handle(ctx context.Context, msg Inbound, r Responder)
}

// AgentInvoker synchronously continues an agent session.
type AgentInvoker interface {
	Continue(ctx context.Context, agent config.AgentConfig, workdir, prompt string, timeout time.Duration) (string, error)
}

// Dispatcher routes inbound chat messages to agents.
type Dispatcher struct {
	channel string
	allowed map[string]struct{}
	routes  *RoutingMap
	cfg     *config.Config
	invoker AgentInvoker
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewDispatcher creates a dispatcher for one channel. Only senders listed
// in allowedUsers are served.
func NewDispatcher(channel string, allowedUsers []string, routes *RoutingMap, cfg *config.Config, invoker AgentInvoker, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, u := range allowedUsers {
		allowed[strings.TrimSpace(u)] = struct{}{}
	}
	return &Dispatcher{
		channel: channel,
		allowed: allowed,
		routes:  routes,
		cfg:     cfg,
		invoker: invoker,
		metrics: m,
		logger:  log.With(logger.Field{Key: "channel", Value: channel}),
	}
}

// Authorized reports whether senderID may talk to agents.
func (d *Dispatcher) Authorized(senderID string) bool {
	_, ok := d.allowed[senderID]
	return ok
}

// Handle processes one inbound message end to end. It blocks until the
// agent answered or its timeout elapsed.
func (d *Dispatcher) Handle(ctx context.Context, msg Inbound, r Responder) {
	if !d.Authorized(msg.SenderID) {
		d.logger.Debug("message from unauthorized sender ignored",
			logger.Field{Key: "sender_id", Value: msg.SenderID})
		d.metrics.RecordRouted(d.channel, resultUnauthorized)
		return
	}

	msg.Text = Normalize(msg.Text)
	if msg.Text == "" {
		return
	}

	target, ok := ResolveTarget(msg, d.routes, d.cfg.AgentNames())
	d.metrics.RecordRouted(d.channel, target.Via)
	if !ok {
		notice := fmt.Sprintf(constants.MsgPickAgent, strings.Join(d.cfg.AgentNames(), ", ")) +
			"\n" + constants.MsgUnknownAgentHint
		if err := r.Notice(ctx, msg, notice); err != nil {
			d.logger.Error("failed to send agent hint", err, LogFields(err)...)
		}
		return
	}

	log := d.logger.With(
		logger.Field{Key: "agent", Value: target.Agent},
		logger.Field{Key: "via", Value: target.Via})
	log.Info("inbound message routed", logger.Field{Key: "sender_id", Value: msg.SenderID})

	reply := d.invoke(ctx, msg, target, r, log)
	if err := r.Reply(ctx, msg, target.Agent, reply); err != nil {
		log.Error("failed to send agent reply", err, LogFields(err)...)
	}
}

// invoke runs the agent and returns the text to send back.
func (d *Dispatcher) invoke(ctx context.Context, msg Inbound, target Target, r Responder, log *logger.Logger) string {
	agent, _ := d.cfg.Agent(target.Agent)

	workdir, err := workspace.ResolvePath(agent.Workdir)
	if err != nil {
		return fmt.Sprintf(constants.MsgInvocationError, Truncate(err.Error(), constants.MaxInlineErrorChars))
	}

	stopTyping := d.startTyping(ctx, msg, r)
	defer stopTyping()

	timeout := config.ResolveTimeout(agent, nil, d.cfg.Scheduler.DefaultTimeoutSeconds)
	out, err := d.invoker.Continue(ctx, agent, workdir, target.Text, timeout)
	if err != nil {
		log.Error("agent invocation failed", err)
		return fmt.Sprintf(constants.MsgInvocationError, Truncate(err.Error(), constants.MaxInlineErrorChars))
	}
	if strings.TrimSpace(out) == "" {
		return constants.MsgEmptyResponse
	}
	return out
}

// startTyping повторяет индикатор набора, пока агент думает
func (d *Dispatcher) startTyping(ctx context.Context, msg Inbound, r Responder) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		for {
			if err := r.Typing(ctx, msg); err != nil && ctx.Err() == nil {
				d.logger.Debug("typing indicator failed", logger.Field{Key: "error", Value: err.Error()})
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
