package liquidator

import "github.com/ethereum/go-ethereum/common"

// Uniswap v3 fee tiers consumed by the on-chain wrapper when it swaps the
// seized collateral back into the debt asset.
const (
	FeeTierStable = int64(500)
	FeeTierNormal = int64(3000)
	FeeTierExotic = int64(10000)
)

// FeePolicy classifies aToken pairs into swap-fee tiers using curated
// allow-lists of stablecoin and exotic-token addresses.
type FeePolicy struct {
	stables map[common.Address]struct{}
	exotics map[common.Address]struct{}
}

// NewFeePolicy builds a FeePolicy from the configured allow-lists.
func NewFeePolicy(stables, exotics []common.Address) *FeePolicy {
	p := &FeePolicy{
		stables: make(map[common.Address]struct{}, len(stables)),
		exotics: make(map[common.Address]struct{}, len(exotics)),
	}
	for _, a := range stables {
		p.stables[a] = struct{}{}
	}
	for _, a := range exotics {
		p.exotics[a] = struct{}{}
	}
	return p
}

// FeeTier returns 500 for stable<->stable pairs, 10000 when either side is
// exotic, and 3000 otherwise.
func (p *FeePolicy) FeeTier(debtAToken, collateralAToken common.Address) int64 {
	if p.isStable(debtAToken) && p.isStable(collateralAToken) {
		return FeeTierStable
	}
	if p.isExotic(debtAToken) || p.isExotic(collateralAToken) {
		return FeeTierExotic
	}
	return FeeTierNormal
}

func (p *FeePolicy) isStable(a common.Address) bool {
	_, ok := p.stables[a]
	return ok
}

func (p *FeePolicy) isExotic(a common.Address) bool {
	_, ok := p.exotics[a]
	return ok
}
