// Package httpclient provides a shared HTTP JSON client with retry logic
// and rate limiting for external API calls.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/meridian-research/aave-liquidator/internal/pkg/retry"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateBurst      int
}

// DefaultConfig returns sensible defaults for the HTTP client.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		RateLimit:      rate.Limit(5),
		RateBurst:      1,
	}
}

// Client wraps an HTTP client with retry logic and rate limiting.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryConfig retry.Config
	logger      *slog.Logger
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		retryConfig: retry.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			Jitter:         true,
		},
		logger: logger,
	}
}

// PostJSON sends body as a JSON POST and decodes the response into result,
// retrying on server errors and rate limits.
func (c *Client) PostJSON(ctx context.Context, url string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	isRetryable := func(err error) bool {
		var nonRetryable *NonRetryableError
		return !asNonRetryable(err, &nonRetryable)
	}

	return retry.DoVoid(ctx, c.retryConfig, isRetryable, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return WrapNonRetryable(fmt.Errorf("rate limiter: %w", err))
		}
		return c.doSingleRequest(ctx, url, payload, result)
	})
}

func (c *Client) doSingleRequest(ctx context.Context, url string, payload []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return WrapNonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (HTTP 429)")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return WrapNonRetryable(fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return WrapNonRetryable(fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// NonRetryableError wraps errors that should not be retried.
type NonRetryableError struct {
	err error
}

func (e *NonRetryableError) Error() string { return e.err.Error() }

func (e *NonRetryableError) Unwrap() error { return e.err }

// WrapNonRetryable wraps an error to indicate it should not be retried.
func WrapNonRetryable(err error) error {
	return &NonRetryableError{err: err}
}

func asNonRetryable(err error, target **NonRetryableError) bool {
	for err != nil {
		if e, ok := err.(*NonRetryableError); ok {
			*target = e
			return true
		}
		if u, ok := err.(interface{ Unwrap() error }); ok {
			err = u.Unwrap()
		} else {
			break
		}
	}
	return false
}
