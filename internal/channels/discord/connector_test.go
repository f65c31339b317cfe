package discord

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/channels"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/retry"
)

// MockHandler is a testify mock of channels.Handler.
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, msg channels.Inbound, r channels.Responder) {
	m.Called(ctx, msg, r)
}

func testConnector(t *testing.T, api *fakeAPI, h channels.Handler) *Connector {
	chmap, err := LoadChannelMap(filepath.Join(t.TempDir(), "discord_channels.json"))
	require.NoError(t, err)
	cfg := config.DiscordConfig{Enabled: true, GuildID: "g1", CategoryID: "cat1", GatewayURL: "ws://unused"}
	return New(cfg, api.client(), chmap, channels.NewRoutingMap(100), h, nil, logger.NewNop())
}

func TestEnsureChannels_CreatesAndReuses(t *testing.T) {
	api := newFakeAPI(t)
	api.channels = []Channel{
		{ID: "900", Name: "ops", Type: ChannelTypeText},
		{ID: "901", Name: "research", Type: ChannelTypeCategory},
	}
	c := testConnector(t, api, nil)

	require.NoError(t, c.EnsureChannels(context.Background(), []string{"ops", "Research"}))

	id, ok := c.channels.Get("ops")
	assert.True(t, ok)
	assert.Equal(t, "900", id, "same-named text channel is reused")

	id, ok = c.channels.Get("Research")
	assert.True(t, ok)
	assert.NotEqual(t, "901", id, "categories are not text channels")
	assert.Len(t, api.channels, 3)
	assert.Equal(t, "research", api.channels[2].Name)
	assert.Equal(t, "cat1", api.channels[2].ParentID)

	// Повторный вызов использует сохранённую карту без API
	reloaded, err := LoadChannelMap(c.channels.path)
	require.NoError(t, err)
	c.channels = reloaded
	require.NoError(t, c.EnsureChannels(context.Background(), []string{"ops", "Research"}))
	assert.Equal(t, 1, api.listed)
}

func TestSendAgentMessage_Chunks(t *testing.T) {
	api := newFakeAPI(t)
	c := testConnector(t, api, nil)
	c.channels.Set("ops", "c-ops")

	text := strings.Repeat("z", 2731)
	id, err := c.SendAgentMessage(context.Background(), "ops", "nightly", text)
	require.NoError(t, err)

	sent := api.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, sent[0].ID, id)
	assert.Equal(t, "🤖 [ops/nightly]", sent[0].Content)
	assert.Equal(t, 2000, utf8.RuneCountInString(sent[1].Content))
	assert.Equal(t, 731, utf8.RuneCountInString(sent[2].Content))
	assert.Equal(t, text, sent[1].Content+sent[2].Content)
	for _, m := range sent {
		assert.Equal(t, "c-ops", m.ChannelID)
	}

	agent, ok := c.routes.Lookup(sent[0].ID)
	assert.True(t, ok)
	assert.Equal(t, "ops", agent)
	for _, m := range sent[1:] {
		_, ok := c.routes.Lookup(m.ID)
		assert.False(t, ok, "only the first message is tracked")
	}
}

func TestSendAgentMessage_CountedOnce(t *testing.T) {
	api := newFakeAPI(t)
	c := testConnector(t, api, nil)
	c.metrics = metrics.New("ocalt")
	c.channels.Set("ops", "c-ops")

	_, err := c.SendAgentMessage(context.Background(), "ops", "nightly", strings.Repeat("z", 2731))
	require.NoError(t, err)

	families, err := c.metrics.Gatherer().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "ocalt_channel_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, total, "one logical message, three parts, one count")
}

func TestSendAgentMessage_RetriesServerError(t *testing.T) {
	api := newFakeAPI(t)
	api.failOnce = 2
	c := testConnector(t, api, nil)
	c.retry = retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}
	c.channels.Set("ops", "c-ops")

	_, err := c.SendAgentMessage(context.Background(), "ops", "nightly", "done")
	require.NoError(t, err)
	assert.Len(t, api.sent(), 1)
}

func TestSendAgentMessage_RateLimitBeyondBackoff(t *testing.T) {
	api := newFakeAPI(t)
	api.failWith = 429
	c := testConnector(t, api, nil)
	c.retry = retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}
	c.channels.Set("ops", "c-ops")

	_, err := c.SendAgentMessage(context.Background(), "ops", "nightly", "done")
	var details *channels.DiscordErrorDetails
	require.ErrorAs(t, err, &details)
	assert.Equal(t, 429, details.StatusCode)
	assert.Empty(t, api.sent())
}

func TestSendAgentMessage_NoChannel(t *testing.T) {
	c := testConnector(t, newFakeAPI(t), nil)

	_, err := c.SendAgentMessage(context.Background(), "ghost", "a", "hi")
	assert.ErrorContains(t, err, "no discord channel")
}

func TestReplyNoticeTyping(t *testing.T) {
	api := newFakeAPI(t)
	c := testConnector(t, api, nil)
	msg := channels.Inbound{ChatID: "c-ops", MessageID: "m5"}

	require.NoError(t, c.Reply(context.Background(), msg, "ops", "done"))
	require.NoError(t, c.Notice(context.Background(), msg, "pick one"))
	require.NoError(t, c.Typing(context.Background(), msg))

	sent := api.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "💬 [ops · reply]\n\ndone", sent[0].Content)
	assert.Equal(t, "m5", sent[0].MessageReference.MessageID)
	assert.Equal(t, "pick one", sent[1].Content)

	_, ok := c.routes.Lookup(sent[0].ID)
	assert.True(t, ok)
	_, ok = c.routes.Lookup(sent[1].ID)
	assert.False(t, ok)
	assert.Equal(t, []string{"c-ops"}, api.typing)
}

func TestOnMessage_BuildsInbound(t *testing.T) {
	h := new(MockHandler)
	received := make(chan channels.Inbound, 1)
	h.On("Handle", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		received <- args.Get(1).(channels.Inbound)
	})
	c := testConnector(t, newFakeAPI(t), h)
	c.channels.Set("research", "c-research")

	c.onMessage(context.Background(), Message{
		ID:               "m7",
		ChannelID:        "c-research",
		GuildID:          "g1",
		Content:          "what changed?",
		Author:           &User{ID: "u1"},
		MessageReference: &MessageReference{MessageID: "m3"},
	})
	c.onMessage(context.Background(), Message{ID: "m8", ChannelID: "c-research", GuildID: "other", Content: "x", Author: &User{ID: "u1"}})

	select {
	case in := <-received:
		assert.Equal(t, channels.Inbound{
			Channel:      ChannelName,
			SenderID:     "u1",
			ChatID:       "c-research",
			MessageID:    "m7",
			ReplyToID:    "m3",
			Text:         "what changed?",
			ChannelAgent: "research",
		}, in)
	case <-time.After(time.Second):
		t.Fatal("message not handled")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, received, 0, "messages from other guilds are ignored")
}

func TestChannelMap_AgentFor(t *testing.T) {
	m, err := LoadChannelMap("")
	require.NoError(t, err)
	m.Set("ops", "1")

	agent, ok := m.AgentFor("1")
	assert.True(t, ok)
	assert.Equal(t, "ops", agent)
	_, ok = m.AgentFor("2")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, m.Missing([]string{"b", "ops", "a"}))
	assert.NoError(t, m.Save())
}
