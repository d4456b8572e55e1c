package tracker

import (
	"math/big"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
)

// Action is the state-machine decision for one tracked account after a
// health-factor observation.
type Action int

const (
	// ActionKeep keeps the account tracked and updates its last health
	// factor.
	ActionKeep Action = iota

	// ActionRemove drops the account from the tracked set: either the
	// read failed (a later re-seed can reintroduce the address) or the
	// position healed past the hysteresis band.
	ActionRemove

	// ActionLiquidate dispatches a liquidation attempt and drops the
	// account from the tracked set as soon as the dispatch is issued.
	ActionLiquidate
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionRemove:
		return "remove"
	case ActionLiquidate:
		return "liquidate"
	default:
		return "unknown"
	}
}

// Decide maps one observation to an action. upperBound is the hysteresis
// ceiling (1.01e18 by default): positions between 1e18 and upperBound stay
// tracked so near-threshold accounts don't thrash in and out of the set.
func Decide(summary *entity.AccountSummary, upperBound *big.Int) Action {
	if summary == nil || summary.HealthFactor == nil {
		return ActionRemove
	}
	if summary.HealthFactor.Cmp(entity.HealthFactorUnit) <= 0 {
		return ActionLiquidate
	}
	if summary.HealthFactor.Cmp(upperBound) > 0 {
		return ActionRemove
	}
	return ActionKeep
}
