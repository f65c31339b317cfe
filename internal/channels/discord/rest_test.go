package discord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/channels"
)

func TestClient_CreateMessage(t *testing.T) {
	api := newFakeAPI(t)

	sent, err := api.client().CreateMessage(context.Background(), "c1", "hello", "m9")
	require.NoError(t, err)
	assert.Equal(t, "c1", sent.ChannelID)
	assert.NotEmpty(t, sent.ID)

	got := api.sent()
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
	require.NotNil(t, got[0].MessageReference)
	assert.Equal(t, "m9", got[0].MessageReference.MessageID)
}

func TestClient_ErrorDetails(t *testing.T) {
	api := newFakeAPI(t)
	api.failWith = 429

	_, err := api.client().CreateMessage(context.Background(), "c1", "hello", "")
	require.Error(t, err)

	var details *channels.DiscordErrorDetails
	require.ErrorAs(t, err, &details)
	assert.Equal(t, 429, details.StatusCode)
	assert.Equal(t, 20028, details.Code)
	assert.True(t, details.IsRetryable())
	assert.Equal(t, 1500*time.Millisecond, details.RetryAfter())
	assert.Equal(t, "POST /channels/{id}/messages", details.Route)
}

func TestClient_Unauthorized(t *testing.T) {
	api := newFakeAPI(t)
	c := NewClient(api.server.URL, "wrong", 0, time.Second)

	_, err := c.CreateMessage(context.Background(), "c1", "hello", "")
	var details *channels.DiscordErrorDetails
	require.ErrorAs(t, err, &details)
	assert.Equal(t, 401, details.StatusCode)
	assert.False(t, details.IsRetryable())
}

func TestClient_Channels(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client()
	ctx := context.Background()

	created, err := c.CreateTextChannel(ctx, "g1", "ops", "cat1")
	require.NoError(t, err)
	assert.Equal(t, "ops", created.Name)
	assert.Equal(t, ChannelTypeText, created.Type)
	assert.Equal(t, "cat1", created.ParentID)

	list, err := c.GuildChannels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	require.NoError(t, c.TriggerTyping(ctx, created.ID))
	assert.Equal(t, []string{created.ID}, api.typing)
}

func TestClient_Pacing(t *testing.T) {
	api := newFakeAPI(t)
	c := NewClient(api.server.URL, "test-token", 20, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.CreateMessage(context.Background(), "c1", "x", "")
		require.NoError(t, err)
	}
	// burst 1, затем 50ms между отправками
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
