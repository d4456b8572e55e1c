package liquidator

import (
	"math"
	"math/big"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/pkg/wad"
)

// Gas bid policy: the bid grows exponentially with the numeraire value of
// the debt being repaid, capped at MaxGasGwei. The constants are part of
// the agent's observable bidding behavior and must not be re-derived.
const (
	gasBase     = 29.9895
	gasExponent = 3.50691

	// MaxGasGwei caps the opening bid.
	MaxGasGwei = int64(10000)
)

var gweiInWei = big.NewInt(1_000_000_000)

// GasPriceGwei returns min(10000, floor(29.9895 * exp(3.50691 * debtEth))).
func GasPriceGwei(debtEth float64) int64 {
	raw := gasBase * math.Exp(gasExponent*debtEth)
	if raw >= float64(MaxGasGwei) {
		return MaxGasGwei
	}
	return int64(math.Floor(raw))
}

// GasPriceWei converts the policy bid to wei.
func GasPriceWei(debtEth float64) *big.Int {
	return new(big.Int).Mul(big.NewInt(GasPriceGwei(debtEth)), gweiInWei)
}

// DebtValueEth returns the numeraire value of the repaid debt as a float:
// repay * price / 10^decimals, scaled out of wad. Float precision is fine
// here; the value only feeds the gas policy.
func DebtValueEth(repay *big.Int, debt *entity.Market) float64 {
	if repay == nil {
		return 0
	}
	value := new(big.Int).Mul(repay, debt.Price)
	value.Div(value, debt.PowDecimals())
	return wad.ToFloat(value)
}

// BumpGasPrice out-bids a competitor by 10%: floor(competitor * 11 / 10).
func BumpGasPrice(competitor *big.Int) *big.Int {
	bumped := new(big.Int).Mul(competitor, big.NewInt(11))
	return bumped.Div(bumped, big.NewInt(10))
}
