package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// AccountEnumerator lists every address that has ever borrowed from the
// protocol, used only to seed the watchlist when the store is empty.
type AccountEnumerator interface {
	// ListBorrowers pages through the index by ascending id and returns
	// the full borrower universe.
	ListBorrowers(ctx context.Context) ([]common.Address, error)
}
