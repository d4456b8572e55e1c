// Package wad provides helpers for 1e18 fixed-point ("wad") arithmetic.
package wad

import "math/big"

// One is 1e18, the unit of health factors and numeraire prices.
var One = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Pow10 returns 10^n.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FromFloat converts a small human number (e.g. 1.01) to wad. Only used
// for configuration constants, never for chain amounts.
func FromFloat(v float64) *big.Int {
	f := new(big.Float).SetFloat64(v)
	f.Mul(f, new(big.Float).SetInt(One))
	out, _ := f.Int(nil)
	return out
}

// ToFloat converts a wad amount to float64 for logging and gas policy.
// Precision loss is acceptable for those uses.
func ToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(One)).Float64()
	return f
}

// Human converts a raw token amount to a decimal string adjusted by the
// token's decimals, for the diagnostic artifacts.
func Human(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(Pow10(decimals)))
	return f.Text('f', -1)
}
