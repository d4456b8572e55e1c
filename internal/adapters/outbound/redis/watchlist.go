// Package redis provides a Redis implementation of the WatchlistStore port.
//
// The three watchlist sets and the per-address JSON blob slots live under
// the keys the operator tooling already knows (AAVE#allAccounts,
// AAVE#accountToTrack, AAVE#blacklist, AAVE#<address>).
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time check that Watchlist implements outbound.WatchlistStore.
var _ outbound.WatchlistStore = (*Watchlist)(nil)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
}

// ConfigDefaults returns sensible defaults for Redis configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	}
}

// Watchlist is a Redis implementation of the outbound.WatchlistStore port.
type Watchlist struct {
	client *redis.Client
	logger *slog.Logger
}

// NewWatchlist creates a new Redis watchlist store.
func NewWatchlist(cfg Config, logger *slog.Logger) (*Watchlist, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &Watchlist{
		client: client,
		logger: logger.With("component", "redis-watchlist"),
	}, nil
}

// Ping checks the Redis connection.
func (w *Watchlist) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (w *Watchlist) Close() error {
	return w.client.Close()
}

// SMembers returns every member of the named set.
func (w *Watchlist) SMembers(ctx context.Context, set string) ([]string, error) {
	members, err := w.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read set %s: %w", set, err)
	}
	return members, nil
}

// SAdd adds members to the named set.
func (w *Watchlist) SAdd(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := w.client.SAdd(ctx, set, args...).Err(); err != nil {
		return fmt.Errorf("failed to add to set %s: %w", set, err)
	}
	return nil
}

// SRem removes members from the named set.
func (w *Watchlist) SRem(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := w.client.SRem(ctx, set, args...).Err(); err != nil {
		return fmt.Errorf("failed to remove from set %s: %w", set, err)
	}
	return nil
}

// SIsMember reports membership in the named set.
func (w *Watchlist) SIsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := w.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check membership in %s: %w", set, err)
	}
	return ok, nil
}

// SetAccountBlob writes the reserved AAVE#<address> JSON slot.
func (w *Watchlist) SetAccountBlob(ctx context.Context, address string, blob []byte) error {
	key := fmt.Sprintf("AAVE#%s", address)
	if err := w.client.Set(ctx, key, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write account blob %s: %w", key, err)
	}
	return nil
}
