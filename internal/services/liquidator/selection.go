package liquidator

import (
	"bytes"
	"math/big"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
)

// MarketLeg pairs a market's parameters with the borrower's balances in it.
type MarketLeg struct {
	Market *entity.Market
	Leg    *entity.PositionLeg
}

// SelectDebtMarket picks the leg where the borrower owes the most variable
// debt in numeraire terms: max variable_debt * price / 10^decimals. Ties
// break to the lexicographically smallest asset address so the choice is
// reproducible.
func SelectDebtMarket(legs []MarketLeg) *MarketLeg {
	var best *MarketLeg
	var bestScore *big.Int

	for i := range legs {
		candidate := &legs[i]
		if candidate.Leg == nil || !candidate.Leg.HasVariableDebt() {
			continue
		}
		score := new(big.Int).Mul(candidate.Leg.VariableDebt, candidate.Market.Price)
		score.Div(score, candidate.Market.PowDecimals())

		if better(score, candidate, bestScore, best) {
			best, bestScore = candidate, score
		}
	}
	return best
}

// SelectCollateralMarket picks the leg that maximizes bonus capture:
// max a_token_balance * price * liquidation_bonus / 10^decimals over the
// legs flagged as collateral. Same tie-break as the debt side.
func SelectCollateralMarket(legs []MarketLeg) *MarketLeg {
	var best *MarketLeg
	var bestScore *big.Int

	for i := range legs {
		candidate := &legs[i]
		if candidate.Leg == nil || !candidate.Leg.HasCollateral() {
			continue
		}
		score := new(big.Int).Mul(candidate.Leg.ATokenBalance, candidate.Market.Price)
		score.Mul(score, big.NewInt(candidate.Market.LiquidationBonus))
		score.Div(score, candidate.Market.PowDecimals())

		if better(score, candidate, bestScore, best) {
			best, bestScore = candidate, score
		}
	}
	return best
}

// better reports whether candidate's score beats the current best, with
// the address tie-break.
func better(score *big.Int, candidate *MarketLeg, bestScore *big.Int, best *MarketLeg) bool {
	if best == nil {
		return true
	}
	switch score.Cmp(bestScore) {
	case 1:
		return true
	case 0:
		return bytes.Compare(candidate.Market.Asset.Bytes(), best.Market.Asset.Bytes()) < 0
	default:
		return false
	}
}

// RepayAmount applies the protocol's 50% close factor: half the variable
// debt in the chosen market, rounded down.
func RepayAmount(variableDebt *big.Int) *big.Int {
	if variableDebt == nil {
		return new(big.Int)
	}
	return new(big.Int).Div(variableDebt, big.NewInt(2))
}

// EstimateReward computes the closed-form reward estimate in units of the
// collateral token:
//
//	repay * price(debt) * 10^dec(coll) / 10^dec(debt) / price(coll) * bonus / 10000
//
// On-chain accounting is authoritative; this is a diagnostic estimate.
func EstimateReward(repay *big.Int, debt, collateral *entity.Market) *big.Int {
	if repay == nil || collateral.Price.Sign() == 0 {
		return new(big.Int)
	}
	reward := new(big.Int).Mul(repay, debt.Price)
	reward.Mul(reward, collateral.PowDecimals())
	reward.Div(reward, debt.PowDecimals())
	reward.Div(reward, collateral.Price)
	reward.Mul(reward, big.NewInt(collateral.LiquidationBonus))
	reward.Div(reward, big.NewInt(entity.BasisPointScale))
	return reward
}
