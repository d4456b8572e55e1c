package tracker

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/artifacts"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

func seedMarket(t *testing.T, f *fixture) {
	t.Helper()
	m, err := entity.NewMarket(
		common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		"USDC",
		6,
		8500,
		10400,
		common.HexToAddress("0x1a13F4Ca1d028320A707D99520AbFefca3998b7F"),
		common.HexToAddress("0x248960A9d75EdFa3de94F7193eae3161Eb349a12"),
		big.NewInt(1e15),
		big.NewInt(1),
	)
	if err != nil {
		t.Fatalf("building market: %v", err)
	}
	f.reader.Markets = []*entity.Market{m}
}

func TestBootstrapSelectsLowestHealthFactors(t *testing.T) {
	const k = 5
	f := newFixture(t, k)
	seedMarket(t, f)

	// 30 borrowers, health factors 1.001, 1.002, ... ascending with the
	// address byte; all carry real debt.
	for i := 0; i < 30; i++ {
		a := addr(byte(i + 1))
		f.reader.Borrowers = append(f.reader.Borrowers, a)
		f.setHealthFactor(a, new(big.Int).Add(entity.HealthFactorUnit, big.NewInt(int64(i+1)*1e15)))
	}

	writer := artifacts.NewWriter(t.TempDir())
	if err := f.service.Bootstrap(context.Background(), writer); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	tracked := f.service.Tracked()
	if len(tracked) != k {
		t.Fatalf("tracked size = %d, want %d", len(tracked), k)
	}
	// The K smallest health factors, in ascending order.
	for i, entry := range tracked {
		want := addr(byte(i + 1))
		if entry.Address != want {
			t.Errorf("slot %d: got %s, want %s", i, entry.Address.Hex(), want.Hex())
		}
	}

	// The store mirrors the selection and the universe.
	members, _ := f.store.SMembers(context.Background(), outbound.SetTracked)
	if len(members) != k {
		t.Errorf("store tracked size = %d, want %d", len(members), k)
	}
	known, _ := f.store.SMembers(context.Background(), outbound.SetAllAccounts)
	if len(known) != 30 {
		t.Errorf("known accounts = %d, want 30", len(known))
	}
}

func TestBootstrapFiltersDustAndUnderwater(t *testing.T) {
	f := newFixture(t, 10)
	seedMarket(t, f)

	dust := addr(1)
	underwater := addr(2)
	atThreshold := addr(3)
	eligible := addr(4)

	f.reader.Borrowers = []common.Address{dust, underwater, atThreshold, eligible}

	// Dust: healthy but debt below 1e14.
	f.reader.Summaries[dust] = &entity.AccountSummary{
		Address: dust, TotalDebt: big.NewInt(1e13), HealthFactor: hf(105, 16),
	}
	// Underwater and not yet liquidated: presumed unprofitable.
	f.setHealthFactor(underwater, hf(95, 16))
	// Exactly at the boundary is also excluded (strictly-above filter).
	f.setHealthFactor(atThreshold, new(big.Int).Set(entity.HealthFactorUnit))
	f.setHealthFactor(eligible, hf(103, 16))

	if err := f.service.Bootstrap(context.Background(), nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	tracked := f.service.Tracked()
	if len(tracked) != 1 || tracked[0].Address != eligible {
		t.Fatalf("tracked = %v, want only %s", tracked, eligible.Hex())
	}
}

func TestBootstrapExcludesBlacklistedAccounts(t *testing.T) {
	f := newFixture(t, 2)
	seedMarket(t, f)

	banned := addr(1)
	second := addr(2)
	third := addr(3)
	f.reader.Borrowers = []common.Address{banned, second, third}
	f.setHealthFactor(banned, hf(1001, 15))
	f.setHealthFactor(second, hf(1002, 15))
	f.setHealthFactor(third, hf(1003, 15))

	if err := f.store.SAdd(context.Background(), outbound.SetBlacklist, storeKey(banned)); err != nil {
		t.Fatalf("seeding blacklist: %v", err)
	}

	if err := f.service.Bootstrap(context.Background(), nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	for _, entry := range f.service.Tracked() {
		if entry.Address == banned {
			t.Fatalf("blacklisted account %s was tracked", banned.Hex())
		}
	}
	if got := len(f.service.Tracked()); got != 2 {
		t.Errorf("tracked size = %d, want 2", got)
	}
}

func TestBootstrapRestoresFullSetWithoutEnumeration(t *testing.T) {
	f := newFixture(t, 2)
	seedMarket(t, f)

	for i := 0; i < 2; i++ {
		if err := f.store.SAdd(context.Background(), outbound.SetTracked, storeKey(addr(byte(i+1)))); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}

	if err := f.service.Bootstrap(context.Background(), nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if got := len(f.service.Tracked()); got != 2 {
		t.Errorf("tracked size = %d, want 2", got)
	}
	// The restore path must not have touched the oracle.
	if calls := f.reader.SummaryCalls(addr(1)); calls != 0 {
		t.Errorf("summary calls = %d, want 0 on restore", calls)
	}
}

func TestBootstrapPopulatesKnownAccountsFromEnumerator(t *testing.T) {
	f := newFixture(t, 3)
	seedMarket(t, f)

	a := addr(7)
	f.reader.Borrowers = []common.Address{a}
	f.setHealthFactor(a, hf(1005, 15))

	if err := f.service.Bootstrap(context.Background(), nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	known, _ := f.store.SMembers(context.Background(), outbound.SetAllAccounts)
	if len(known) != 1 || known[0] != storeKey(a) {
		t.Errorf("known accounts = %v, want [%s]", known, storeKey(a))
	}
}

func TestBootstrapFailsOnEmptyCandidateSet(t *testing.T) {
	f := newFixture(t, 3)
	seedMarket(t, f)

	if err := f.service.Bootstrap(context.Background(), nil); err == nil {
		t.Fatal("expected bootstrap to fail with no candidates")
	}
}
