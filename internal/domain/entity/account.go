package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// HealthFactorUnit is the fixed-point scale for health factors.
// A health factor of exactly 1e18 marks the liquidation boundary.
var HealthFactorUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// AccountSummary is the aggregate position of a borrower as reported by
// the lending pool in a single call. All amounts are 1e18 fixed-point
// units of the numeraire.
type AccountSummary struct {
	Address                     common.Address
	TotalCollateral             *big.Int
	TotalDebt                   *big.Int
	AvailableBorrow             *big.Int
	CurrentLiquidationThreshold *big.Int
	HealthFactor                *big.Int
}

// Liquidatable reports whether the position has crossed the liquidation
// boundary (health factor at or below 1e18).
func (s *AccountSummary) Liquidatable() bool {
	return s.HealthFactor != nil && s.HealthFactor.Cmp(HealthFactorUnit) <= 0
}

// PositionLeg is one borrower x market slice of a position.
type PositionLeg struct {
	Asset            common.Address
	ATokenBalance    *big.Int
	VariableDebt     *big.Int
	StableDebt       *big.Int
	UsedAsCollateral bool
}

// HasCollateral reports whether this leg holds seizable collateral.
func (l *PositionLeg) HasCollateral() bool {
	return l.UsedAsCollateral && l.ATokenBalance != nil && l.ATokenBalance.Sign() > 0
}

// HasVariableDebt reports whether this leg carries repayable variable debt.
func (l *PositionLeg) HasVariableDebt() bool {
	return l.VariableDebt != nil && l.VariableDebt.Sign() > 0
}
