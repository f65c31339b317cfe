// Package retry re-sends chat API calls that failed with a temporary error,
// waiting as long as the API asked or with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aatumaykin/ocalt/internal/logger"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 30 * time.Second
)

// Temporary is implemented by API errors that know whether a retry can help.
type Temporary interface {
	IsRetryable() bool
	RetryAfter() time.Duration
}

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int           // всего попыток, включая первую (default: 3)
	InitialBackoff time.Duration // default: 1s
	MaxBackoff     time.Duration // верхняя граница ожидания, в т.ч. retry_after (default: 30s)
}

// Do calls fn until it succeeds, fails with a non-retryable error or the
// attempts run out. A retry_after longer than MaxBackoff is not waited for.
func Do(ctx context.Context, cfg Config, log *logger.Logger, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, ok := delay(err, attempt, cfg)
		if !ok || attempt == cfg.MaxAttempts-1 {
			break
		}

		log.Debug("temporary error, retrying",
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "wait", Value: wait.String()},
			logger.Field{Key: "error", Value: err.Error()})

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry interrupted: %w)", lastErr, ctx.Err())
		}
	}
	return lastErr
}

// IsRetryable reports whether err is worth another attempt: API errors
// decide for themselves, network timeouts are retried, everything else
// (including cancellation) is not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var tmp Temporary
	if errors.As(err, &tmp) {
		return tmp.IsRetryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// delay returns how long to wait before the next attempt, or false when err
// must not be retried.
func delay(err error, attempt int, cfg Config) (time.Duration, bool) {
	if !IsRetryable(err) {
		return 0, false
	}

	var tmp Temporary
	if errors.As(err, &tmp) {
		if after := tmp.RetryAfter(); after > 0 {
			if after > cfg.MaxBackoff {
				return 0, false
			}
			return after, true
		}
	}
	return calculateBackoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff), true
}

// calculateBackoff calculates the backoff duration for a given attempt.
// Uses exponential backoff: 2^attempt * initial, capped at maxBackoff.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * initial
	if backoff > max {
		return max
	}
	return backoff
}
