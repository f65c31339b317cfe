package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/runner"
	"github.com/aatumaykin/ocalt/internal/state"
)

// MockTriggerer is a testify mock of Triggerer.
type MockTriggerer struct {
	mock.Mock
}

func (m *MockTriggerer) Trigger(ctx context.Context, ref string) (runner.Result, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(runner.Result), args.Error(1)
}

func startServer(t *testing.T, trig Triggerer) string {
	// Короткий путь: длина пути unix-сокета ограничена
	dir, err := os.MkdirTemp("", "ocalt")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, SocketFileName)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(trig, logger.NewNop()).Serve(ctx, socket) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_, err := Call(context.Background(), socket, Request{Type: RequestPing})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return socket
}

func TestServer_Trigger(t *testing.T) {
	trig := new(MockTriggerer)
	trig.On("Trigger", mock.Anything, "ops/nightly").Return(runner.Result{
		Status:   state.StatusOK,
		Duration: 1500 * time.Millisecond,
		LogPath:  "/logs/ops-nightly.log",
	}, nil)
	socket := startServer(t, trig)

	resp, err := Call(context.Background(), socket, Request{Type: RequestTrigger, Job: "ops/nightly"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.InDelta(t, 1.5, resp.Duration, 0.001)
	assert.Equal(t, "/logs/ops-nightly.log", resp.LogPath)
	trig.AssertExpectations(t)
}

func TestServer_TriggerError(t *testing.T) {
	trig := new(MockTriggerer)
	trig.On("Trigger", mock.Anything, "nope").Return(runner.Result{}, errors.New("job not found: nope"))
	socket := startServer(t, trig)

	_, err := Call(context.Background(), socket, Request{Type: RequestTrigger, Job: "nope"})
	assert.EqualError(t, err, "job not found: nope")
}

func TestServer_UnknownRequest(t *testing.T) {
	socket := startServer(t, new(MockTriggerer))

	_, err := Call(context.Background(), socket, Request{Type: "reboot"})
	assert.ErrorContains(t, err, "unknown request type")
}

func TestCall_NoServer(t *testing.T) {
	_, err := Call(context.Background(), filepath.Join(t.TempDir(), "none.sock"), Request{Type: RequestPing})
	assert.Error(t, err)
}
