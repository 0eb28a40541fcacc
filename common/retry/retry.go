// Package retry re-runs transient-failure-prone external calls (the Docker
// engine, the Matrix homeserver) with exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls the retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Zero or negative values are treated as 1 (no retries).
	MaxAttempts int
	// InitialDelay is the wait before the second attempt. Subsequent delays
	// double up to MaxDelay.
	InitialDelay time.Duration
	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration
	// ShouldRetry optionally classifies errors as retryable. When nil, every
	// non-nil error is retried.
	ShouldRetry func(err error) bool
}

// DefaultConfig is tuned for short-lived network calls.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig.MaxDelay
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(error) bool { return true }
	}
	return c
}

// Do calls fn up to cfg.MaxAttempts times with exponential backoff, logging
// failed attempts under the given operation name. It stops early when ctx is
// cancelled or fn succeeds, and returns the error from the last attempt
// otherwise.
func Do(ctx context.Context, cfg Config, op string, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !cfg.ShouldRetry(lastErr) || attempt >= cfg.MaxAttempts {
			return lastErr
		}

		slog.Debug("retrying after failure",
			"op", op, "attempt", attempt, "max", cfg.MaxAttempts,
			"err", lastErr, "delay", delay)
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
