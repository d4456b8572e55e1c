package catalog

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/memory"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
)

func market(t *testing.T, symbol string, price int64) *entity.Market {
	t.Helper()
	m, err := entity.NewMarket(
		common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		symbol,
		6,
		8500,
		10400,
		common.HexToAddress("0x1a13F4Ca1d028320A707D99520AbFefca3998b7F"),
		common.HexToAddress("0x248960A9d75EdFa3de94F7193eae3161Eb349a12"),
		big.NewInt(price),
		big.NewInt(1),
	)
	if err != nil {
		t.Fatalf("building market: %v", err)
	}
	return m
}

func TestLoadReplacesCache(t *testing.T) {
	reader := memory.NewChainReader()
	reader.Markets = []*entity.Market{market(t, "USDC", 1e15)}
	service := NewService(reader, nil)

	if err := service.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(service.Markets()); got != 1 {
		t.Fatalf("markets = %d, want 1", got)
	}

	reader.Markets = []*entity.Market{market(t, "USDC", 2e15), market(t, "WETH", 1e18)}
	if err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	markets := service.Markets()
	if len(markets) != 2 {
		t.Fatalf("markets = %d, want 2 after refresh", len(markets))
	}
	if markets[0].Price.Int64() != 2e15 {
		t.Errorf("price = %d, want refreshed 2e15", markets[0].Price.Int64())
	}
}

func TestLoadKeepsStaleCacheOnFailure(t *testing.T) {
	reader := memory.NewChainReader()
	reader.Markets = []*entity.Market{market(t, "USDC", 1e15)}
	service := NewService(reader, nil)

	if err := service.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	reader.LoadAllErr = errors.New("rpc down")
	if err := service.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := len(service.Markets()); got != 1 {
		t.Errorf("stale cache lost: markets = %d, want 1", got)
	}
}
