package entity

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TrackState is the lifecycle state of a tracked borrower.
type TrackState int

const (
	// StateTracked means the account is on the watchlist and re-checked
	// every tracker iteration.
	StateTracked TrackState = iota

	// StateLiquidating means a liquidation attempt has been dispatched for
	// the account. Terminal within a run except for the transition to
	// StateRemoved once the dispatch is issued.
	StateLiquidating

	// StateRemoved means the account left the tracked set. Terminal.
	StateRemoved
)

func (s TrackState) String() string {
	switch s {
	case StateTracked:
		return "tracked"
	case StateLiquidating:
		return "liquidating"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// TrackedEntry is one borrower on the in-memory tracked set.
type TrackedEntry struct {
	Address          common.Address
	LastHealthFactor *big.Int
	LastCheckedAt    time.Time
	State            TrackState
}
