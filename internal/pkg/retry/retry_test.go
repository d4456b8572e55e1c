package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Do(context.Background(), fastConfig(), nil, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0
	_, err := Do(context.Background(), fastConfig(), func(error) bool { return false }, func() (int, error) {
		attempts++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), fastConfig(), nil, func() (int, error) {
		attempts++
		return 0, errors.New("always failing")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", attempts)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, fastConfig(), nil, func() (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDoVoid(t *testing.T) {
	called := false
	err := DoVoid(context.Background(), fastConfig(), nil, func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("err=%v called=%v, want nil and true", err, called)
	}
}
