// Package retry provides a reusable retry mechanism with exponential backoff
// for transient upstream failures (RPC timeouts, subgraph 5xx responses).
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry behavior.
type Config struct {
	// MaxRetries is the number of retry attempts after the initial call.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// Jitter adds rand(0, backoff) on top of each wait.
	Jitter bool
}

// DefaultConfig returns a general-purpose retry configuration. The HTTP
// client builds its own Config from httpclient.Config instead.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Jitter:         true,
	}
}

// Do calls fn until it succeeds, isRetryable rejects the error, or the
// attempts are exhausted. The backoff doubles between attempts.
func Do[T any](ctx context.Context, cfg Config, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			if cfg.Jitter {
				wait += time.Duration(rand.Int63n(int64(backoff)))
			}
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("context cancelled while retrying: %w", ctx.Err())
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// DoVoid is Do for functions without a result.
func DoVoid(ctx context.Context, cfg Config, isRetryable func(error) bool, fn func() error) error {
	_, err := Do(ctx, cfg, isRetryable, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
