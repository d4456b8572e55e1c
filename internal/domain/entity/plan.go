package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LiquidationPlan is the fully-resolved input for one liquidation attempt:
// the two chosen market legs, the repay size under the 50% close factor,
// the opening gas bid, and the closed-form reward estimate.
type LiquidationPlan struct {
	Borrower         common.Address
	DebtMarket       *Market
	CollateralMarket *Market
	RepayAmount      *big.Int
	GasPrice         *big.Int // wei
	SwapFee          int64
	EstimatedReward  *big.Int // units of the collateral token
}

// NewLiquidationPlan validates the close-factor rule against the borrower's
// observed variable debt in the chosen debt market.
func NewLiquidationPlan(
	borrower common.Address,
	debtMarket, collateralMarket *Market,
	variableDebt, repayAmount, gasPrice *big.Int,
	swapFee int64,
	estimatedReward *big.Int,
) (*LiquidationPlan, error) {
	p := &LiquidationPlan{
		Borrower:         borrower,
		DebtMarket:       debtMarket,
		CollateralMarket: collateralMarket,
		RepayAmount:      repayAmount,
		GasPrice:         gasPrice,
		SwapFee:          swapFee,
		EstimatedReward:  estimatedReward,
	}
	if err := p.validate(variableDebt); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LiquidationPlan) validate(variableDebt *big.Int) error {
	if p.Borrower == (common.Address{}) {
		return fmt.Errorf("borrower address must not be zero")
	}
	if p.DebtMarket == nil || p.CollateralMarket == nil {
		return fmt.Errorf("both market legs must be set")
	}
	if p.RepayAmount == nil || p.RepayAmount.Sign() <= 0 {
		return fmt.Errorf("repayAmount must be positive")
	}
	if variableDebt != nil {
		half := new(big.Int).Div(variableDebt, big.NewInt(2))
		if p.RepayAmount.Cmp(half) > 0 {
			return fmt.Errorf("repayAmount %s exceeds close factor cap %s", p.RepayAmount, half)
		}
	}
	if p.GasPrice == nil || p.GasPrice.Sign() <= 0 {
		return fmt.Errorf("gasPrice must be positive")
	}
	return nil
}
