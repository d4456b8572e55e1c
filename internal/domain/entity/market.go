package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// BasisPointScale is the divisor for basis-point protocol parameters.
	BasisPointScale = 10000

	// MaxDecimals bounds ERC20 decimals to a sane range.
	MaxDecimals = 36
)

// Market holds the per-reserve parameters the liquidator needs: protocol
// configuration, token addresses, and the current oracle price in 1e18
// units of the chain's native asset.
type Market struct {
	Asset                common.Address
	Symbol               string
	Decimals             int
	LiquidationThreshold int64 // basis points, 0..10000
	LiquidationBonus     int64 // basis points, >= 10000 (10750 = 7.5% bonus), or 0 for a reserve not usable as collateral
	AToken               common.Address
	VariableDebtToken    common.Address
	Price                *big.Int // 1e18 units of the numeraire
	VariableDebtIndex    *big.Int
}

// NewMarket creates a Market and validates the protocol invariants.
func NewMarket(
	asset common.Address,
	symbol string,
	decimals int,
	liquidationThreshold, liquidationBonus int64,
	aToken, variableDebtToken common.Address,
	price, variableDebtIndex *big.Int,
) (*Market, error) {
	m := &Market{
		Asset:                asset,
		Symbol:               symbol,
		Decimals:             decimals,
		LiquidationThreshold: liquidationThreshold,
		LiquidationBonus:     liquidationBonus,
		AToken:               aToken,
		VariableDebtToken:    variableDebtToken,
		Price:                price,
		VariableDebtIndex:    variableDebtIndex,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Market) validate() error {
	if m.Asset == (common.Address{}) {
		return fmt.Errorf("asset address must not be zero")
	}
	if m.Decimals < 0 || m.Decimals > MaxDecimals {
		return fmt.Errorf("decimals must be in [0,%d], got %d", MaxDecimals, m.Decimals)
	}
	if m.LiquidationThreshold < 0 || m.LiquidationThreshold > BasisPointScale {
		return fmt.Errorf("liquidationThreshold must be in [0,%d], got %d", BasisPointScale, m.LiquidationThreshold)
	}
	if m.LiquidationBonus != 0 && m.LiquidationBonus < BasisPointScale {
		return fmt.Errorf("liquidationBonus must be >= %d, got %d", BasisPointScale, m.LiquidationBonus)
	}
	if m.Price == nil || m.Price.Sign() < 0 {
		return fmt.Errorf("price must be non-negative")
	}
	return nil
}

// PowDecimals returns 10^decimals for unit conversion.
func (m *Market) PowDecimals() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(m.Decimals)), nil)
}
