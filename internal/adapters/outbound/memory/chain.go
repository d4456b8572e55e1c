package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time checks for the read ports.
var (
	_ outbound.MarketReader      = (*ChainReader)(nil)
	_ outbound.AccountReader     = (*ChainReader)(nil)
	_ outbound.AccountEnumerator = (*ChainReader)(nil)
)

// ChainReader is an in-memory stand-in for the protocol's read surface.
// Tests set Markets, Summaries and Legs directly.
type ChainReader struct {
	mu sync.RWMutex

	Markets   []*entity.Market
	Summaries map[common.Address]*entity.AccountSummary
	Legs      map[common.Address]map[common.Address]*entity.PositionLeg // account -> asset -> leg
	Borrowers []common.Address

	// LoadAllErr forces LoadAll to fail, for stale-catalog tests.
	LoadAllErr error

	summaryCalls map[common.Address]int
}

// NewChainReader creates an empty in-memory chain reader.
func NewChainReader() *ChainReader {
	return &ChainReader{
		Summaries:    make(map[common.Address]*entity.AccountSummary),
		Legs:         make(map[common.Address]map[common.Address]*entity.PositionLeg),
		summaryCalls: make(map[common.Address]int),
	}
}

func (r *ChainReader) LoadAll(_ context.Context) ([]*entity.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.LoadAllErr != nil {
		return nil, r.LoadAllErr
	}
	out := make([]*entity.Market, len(r.Markets))
	copy(out, r.Markets)
	return out, nil
}

func (r *ChainReader) GetAccountSummary(_ context.Context, account common.Address) *entity.AccountSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaryCalls[account]++
	return r.Summaries[account]
}

func (r *ChainReader) GetPositionLeg(_ context.Context, asset, account common.Address) *entity.PositionLeg {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if legs, ok := r.Legs[account]; ok {
		return legs[asset]
	}
	return nil
}

func (r *ChainReader) ListBorrowers(_ context.Context) ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.Borrowers))
	copy(out, r.Borrowers)
	return out, nil
}

// SetLeg records a position leg for an account and asset.
func (r *ChainReader) SetLeg(account common.Address, leg *entity.PositionLeg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Legs[account] == nil {
		r.Legs[account] = make(map[common.Address]*entity.PositionLeg)
	}
	r.Legs[account][leg.Asset] = leg
}

// SummaryCalls returns how many times GetAccountSummary ran for account.
func (r *ChainReader) SummaryCalls(account common.Address) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryCalls[account]
}
