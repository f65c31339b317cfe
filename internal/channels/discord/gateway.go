package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aatumaykin/ocalt/internal/logger"
)

// Gateway opcodes
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Intents: GUILD_MESSAGES | MESSAGE_CONTENT
const (
	intentGuildMessages  = 1 << 9
	intentMessageContent = 1 << 15
	defaultIntents       = intentGuildMessages | intentMessageContent
)

var (
	errReconnectRequested = errors.New("gateway requested reconnect")
	errInvalidSession     = errors.New("gateway invalidated the session")
	errHeartbeatMissed    = errors.New("heartbeat not acknowledged")
)

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

type outgoing struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type ready struct {
	User User `json:"user"`
}

type identify struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// MessageHandler receives MESSAGE_CREATE events.
type MessageHandler func(ctx context.Context, msg Message)

// Gateway keeps a websocket session with the Discord gateway and delivers
// created messages to a handler. Every failure closes the connection and
// reconnects after a fixed delay.
type Gateway struct {
	url            string
	token          string
	intents        int
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	onMessage      MessageHandler
	logger         *logger.Logger

	botID atomic.Value // string
}

// NewGateway creates a gateway client.
func NewGateway(url, token string, reconnectDelay time.Duration, onMessage MessageHandler, log *logger.Logger) *Gateway {
	g := &Gateway{
		url:            url,
		token:          token,
		intents:        defaultIntents,
		reconnectDelay: reconnectDelay,
		dialer:         websocket.DefaultDialer,
		onMessage:      onMessage,
		logger:         log,
	}
	g.botID.Store("")
	return g
}

// BotID returns the bot user id announced in READY.
func (g *Gateway) BotID() string {
	return g.botID.Load().(string)
}

// Run connects and reconnects until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			g.logger.Info("gateway stopped")
			return nil
		}
		g.logger.Warn("gateway connection lost, reconnecting",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "delay", Value: g.reconnectDelay.String()})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.reconnectDelay):
		}
	}
}

// conn сериализует запись: gorilla не допускает конкурентных писателей
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(op int, d any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(outgoing{Op: op, D: d})
}

// session runs one connection from HELLO to its first failure.
func (g *Gateway) session(ctx context.Context) error {
	ws, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	c := &conn{ws: ws}

	// onMessage получает внешний ctx: ответы агентов переживают переподключение
	parent := ctx
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	var first payload
	if err := ws.ReadJSON(&first); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if first.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", first.Op)
	}
	var h hello
	if err := json.Unmarshal(first.D, &h); err != nil || h.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid hello payload: %s", first.D)
	}

	var (
		seq   atomic.Int64
		acked atomic.Bool
	)
	acked.Store(true)
	go g.heartbeat(ctx, cancel, c, time.Duration(h.HeartbeatInterval)*time.Millisecond, &seq, &acked)

	if err := c.send(opIdentify, identify{
		Token:      g.token,
		Intents:    g.intents,
		Properties: identifyProperties{OS: "linux", Browser: "ocalt", Device: "ocalt"},
	}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	for {
		var p payload
		if err := ws.ReadJSON(&p); err != nil {
			if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
				return cause
			}
			return fmt.Errorf("read: %w", err)
		}
		if p.S != nil {
			seq.Store(*p.S)
		}

		switch p.Op {
		case opDispatch:
			g.dispatch(parent, p)
		case opHeartbeat:
			if err := c.send(opHeartbeat, seqValue(&seq)); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		case opHeartbeatAck:
			acked.Store(true)
		case opReconnect:
			return errReconnectRequested
		case opInvalidSession:
			return errInvalidSession
		}
	}
}

// heartbeat шлёт op 1 каждые interval; если предыдущий не подтверждён, рвёт соединение
func (g *Gateway) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, c *conn, interval time.Duration, seq *atomic.Int64, acked *atomic.Bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !acked.Swap(false) {
				cancel(errHeartbeatMissed)
				return
			}
			if err := c.send(opHeartbeat, seqValue(seq)); err != nil {
				cancel(fmt.Errorf("heartbeat: %w", err))
				return
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, p payload) {
	switch p.T {
	case "READY":
		var r ready
		if err := json.Unmarshal(p.D, &r); err != nil {
			g.logger.Warn("invalid READY payload", logger.Field{Key: "error", Value: err.Error()})
			return
		}
		g.botID.Store(r.User.ID)
		g.logger.Info("gateway ready",
			logger.Field{Key: "bot_id", Value: r.User.ID},
			logger.Field{Key: "username", Value: r.User.Username})
	case "MESSAGE_CREATE":
		var m Message
		if err := json.Unmarshal(p.D, &m); err != nil {
			g.logger.Warn("invalid MESSAGE_CREATE payload", logger.Field{Key: "error", Value: err.Error()})
			return
		}
		if m.Author == nil || m.Author.Bot || m.Author.ID == g.BotID() {
			return
		}
		if g.onMessage != nil {
			g.onMessage(ctx, m)
		}
	}
}

// seqValue returns the last sequence number or nil before the first dispatch.
func seqValue(seq *atomic.Int64) any {
	if s := seq.Load(); s > 0 {
		return s
	}
	return nil
}
