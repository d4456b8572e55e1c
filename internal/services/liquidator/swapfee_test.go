package liquidator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFeeTier(t *testing.T) {
	usdc := common.HexToAddress("0x1a13F4Ca1d028320A707D99520AbFefca3998b7F")
	usdt := common.HexToAddress("0x60D55F02A771d515e077c9C2403a1ef324885CeC")
	weth := common.HexToAddress("0x28424507fefb6f7f8E9D3860F56504E4e5f5f390")
	ghst := common.HexToAddress("0x080b5BF8f360F624628E0fb961F4e67c9e3c7CF1")

	policy := NewFeePolicy(
		[]common.Address{usdc, usdt},
		[]common.Address{ghst},
	)

	tests := []struct {
		name string
		a, b common.Address
		want int64
	}{
		{"stable to stable", usdc, usdt, 500},
		{"stable to normal", usdc, weth, 3000},
		{"normal to normal", weth, weth, 3000},
		{"exotic debt side", ghst, usdc, 10000},
		{"exotic collateral side", weth, ghst, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.FeeTier(tt.a, tt.b); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
