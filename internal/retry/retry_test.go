package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/logger"
)

// apiErr имитирует ошибку API с признаком повторяемости
type apiErr struct {
	retryable bool
	after     time.Duration
}

func (e *apiErr) Error() string             { return fmt.Sprintf("api error (retryable=%v)", e.retryable) }
func (e *apiErr) IsRetryable() bool         { return e.retryable }
func (e *apiErr) RetryAfter() time.Duration { return e.after }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var fast = Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 50 * time.Millisecond}

func TestDo_SucceedsAfterTemporaryFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.NewNop(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &apiErr{retryable: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.NewNop(), func(context.Context) error {
		calls++
		return fmt.Errorf("send: %w", &apiErr{retryable: false})
	})
	var e *apiErr
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.NewNop(), func(context.Context) error {
		calls++
		return &apiErr{retryable: true}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_HonoursRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), fast, logger.NewNop(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &apiErr{retryable: true, after: 30 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDo_RetryAfterBeyondLimitIsNotWaited(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.NewNop(), func(context.Context) error {
		calls++
		return &apiErr{retryable: true, after: time.Hour}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second}

	err := Do(ctx, cfg, logger.NewNop(), func(context.Context) error {
		cancel()
		return &apiErr{retryable: true}
	})
	assert.ErrorIs(t, err, context.Canceled)
	var e *apiErr
	assert.ErrorAs(t, err, &e)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable api error", &apiErr{retryable: true}, true},
		{"permanent api error", &apiErr{retryable: false}, false},
		{"wrapped api error", fmt.Errorf("chunk 1/2: %w", &apiErr{retryable: true}), true},
		{"network timeout", timeoutErr{}, true},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(0, time.Second, 10*time.Second))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, calculateBackoff(5, time.Second, 10*time.Second))
}
