package outbound

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
)

// ErrUpstreamUnavailable is returned when a chain read cannot complete
// because the RPC endpoint failed. Callers decide whether stale data is
// acceptable.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// MarketReader enumerates the protocol's reserves with their current
// configuration and oracle prices.
type MarketReader interface {
	// LoadAll fetches every reserve. Prices are captured atomically per
	// market but not across markets.
	LoadAll(ctx context.Context) ([]*entity.Market, error)
}

// AccountReader provides read-only views over a borrower's position.
// Both reads are idempotent and perform no internal retries.
type AccountReader interface {
	// GetAccountSummary returns the aggregate position, or nil on RPC
	// error. A nil summary is a transient-failure signal, not an error.
	GetAccountSummary(ctx context.Context, account common.Address) *entity.AccountSummary

	// GetPositionLeg returns the borrower's balances in one market, or nil
	// on RPC error.
	GetPositionLeg(ctx context.Context, asset, account common.Address) *entity.PositionLeg
}
