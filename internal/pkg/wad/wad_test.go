package wad

import (
	"math/big"
	"testing"
)

func TestPow10(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "1"},
		{6, "1000000"},
		{18, "1000000000000000000"},
	}
	for _, tt := range tests {
		if got := Pow10(tt.n).String(); got != tt.want {
			t.Errorf("Pow10(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestHuman(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{"one 18-dec token", big.NewInt(1e18), 18, "1"},
		{"half a 6-dec token", big.NewInt(500000), 6, "0.5"},
		{"nil amount", nil, 18, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Human(tt.amount, tt.decimals); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToFloat(t *testing.T) {
	if got := ToFloat(big.NewInt(15e17)); got != 1.5 {
		t.Errorf("ToFloat(1.5e18) = %v, want 1.5", got)
	}
	if got := ToFloat(nil); got != 0 {
		t.Errorf("ToFloat(nil) = %v, want 0", got)
	}
}

func TestFromFloatRoundTrip(t *testing.T) {
	if got := FromFloat(2); got.Cmp(big.NewInt(2e18)) != 0 {
		t.Errorf("FromFloat(2) = %s, want 2e18", got)
	}
}
