package outbound

import "context"

// Watchlist set names. Addresses are stored lowercase, 0x-prefixed.
const (
	SetAllAccounts = "AAVE#allAccounts"
	SetTracked     = "AAVE#accountToTrack"
	SetBlacklist   = "AAVE#blacklist"
)

// WatchlistStore is a durable set-of-strings KV with a per-address JSON
// blob slot. Each call is durable before it acknowledges; calls across
// sets are not transactional and the tracker tolerates that.
type WatchlistStore interface {
	SMembers(ctx context.Context, set string) ([]string, error)
	SAdd(ctx context.Context, set string, members ...string) error
	SRem(ctx context.Context, set string, members ...string) error
	SIsMember(ctx context.Context, set, member string) (bool, error)

	// SetAccountBlob writes the reserved AAVE#<address> JSON slot.
	SetAccountBlob(ctx context.Context, address string, blob []byte) error
}
