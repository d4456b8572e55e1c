package tracker

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/memory"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
	"github.com/meridian-research/aave-liquidator/internal/services/catalog"
)

func addr(n byte) common.Address {
	var a common.Address
	a[19] = n
	return a
}

type fixture struct {
	service    *Service
	reader     *memory.ChainReader
	store      *memory.Watchlist
	dispatched chan common.Address
}

func newFixture(t *testing.T, k int) *fixture {
	t.Helper()
	reader := memory.NewChainReader()
	store := memory.NewWatchlist()
	dispatched := make(chan common.Address, 16)

	config := ConfigDefaults()
	config.TrackedSetSize = k
	config.BootstrapFanOut = 8

	service := NewService(config, catalog.NewService(reader, nil), reader, store, reader, func(_ context.Context, borrower common.Address) {
		dispatched <- borrower
	})
	return &fixture{service: service, reader: reader, store: store, dispatched: dispatched}
}

// track puts an address on the in-memory and durable tracked sets, as
// bootstrap would.
func (f *fixture) track(t *testing.T, a common.Address) {
	t.Helper()
	f.service.tracked = append(f.service.tracked, &entity.TrackedEntry{Address: a, State: entity.StateTracked})
	if err := f.store.SAdd(context.Background(), outbound.SetTracked, storeKey(a)); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
}

func (f *fixture) setHealthFactor(a common.Address, healthFactor *big.Int) {
	f.reader.Summaries[a] = &entity.AccountSummary{
		Address:      a,
		TotalDebt:    hf(1, 18),
		HealthFactor: healthFactor,
	}
}

func TestIterateUntracksHealedAccount(t *testing.T) {
	f := newFixture(t, 10)
	healed := addr(1)
	f.track(t, healed)
	f.setHealthFactor(healed, hf(102, 16))

	f.service.Iterate(context.Background())

	if got := len(f.service.Tracked()); got != 0 {
		t.Errorf("tracked size = %d, want 0", got)
	}
	members, _ := f.store.SMembers(context.Background(), outbound.SetTracked)
	if len(members) != 0 {
		t.Errorf("store still holds %v, want empty", members)
	}
	select {
	case b := <-f.dispatched:
		t.Errorf("unexpected dispatch for %s", b.Hex())
	default:
	}
}

func TestIterateKeepsAccountInHysteresisBand(t *testing.T) {
	f := newFixture(t, 10)
	pinned := addr(2)
	f.track(t, pinned)
	f.setHealthFactor(pinned, hf(1005, 15))

	for i := 0; i < 5; i++ {
		f.service.Iterate(context.Background())
		if got := len(f.service.Tracked()); got != 1 {
			t.Fatalf("tick %d: tracked size = %d, want 1", i, got)
		}
	}

	entry := f.service.Tracked()[0]
	if entry.LastHealthFactor.Cmp(hf(1005, 15)) != 0 {
		t.Errorf("last health factor = %s, want %s", entry.LastHealthFactor, hf(1005, 15))
	}
}

func TestIterateRemovesUnreadableAccount(t *testing.T) {
	f := newFixture(t, 10)
	unreadable := addr(3)
	f.track(t, unreadable)
	// No summary registered: the oracle returns nil.

	f.service.Iterate(context.Background())

	if got := len(f.service.Tracked()); got != 0 {
		t.Errorf("tracked size = %d, want 0", got)
	}
	members, _ := f.store.SMembers(context.Background(), outbound.SetTracked)
	if len(members) != 0 {
		t.Errorf("store still holds %v, want empty", members)
	}
	select {
	case b := <-f.dispatched:
		t.Errorf("unexpected dispatch for %s", b.Hex())
	default:
	}
}

func TestIterateDispatchesLiquidationExactlyOnce(t *testing.T) {
	f := newFixture(t, 10)
	breached := addr(4)
	f.track(t, breached)
	f.setHealthFactor(breached, hf(99, 16))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.service.startWorker(ctx)

	f.service.Iterate(ctx)

	select {
	case b := <-f.dispatched:
		if b != breached {
			t.Errorf("dispatched %s, want %s", b.Hex(), breached.Hex())
		}
	case <-time.After(time.Second):
		t.Fatal("no dispatch within deadline")
	}

	if got := len(f.service.Tracked()); got != 0 {
		t.Errorf("tracked size = %d, want 0 after dispatch", got)
	}

	// Further iterations must not re-dispatch the same borrower.
	f.service.Iterate(ctx)
	f.service.Iterate(ctx)
	select {
	case b := <-f.dispatched:
		t.Errorf("second dispatch for %s", b.Hex())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIterateNeverGrowsTrackedSet(t *testing.T) {
	f := newFixture(t, 10)
	healthFactors := []*big.Int{hf(1001, 15), hf(99, 16), hf(102, 16), nil, hf(1009, 15)}
	for i, factor := range healthFactors {
		a := addr(byte(10 + i))
		f.track(t, a)
		if factor != nil {
			f.setHealthFactor(a, factor)
		}
	}

	before := len(f.service.Tracked())
	for i := 0; i < 4; i++ {
		f.service.Iterate(context.Background())
		after := len(f.service.Tracked())
		if after > before {
			t.Fatalf("iteration grew the tracked set: %d -> %d", before, after)
		}
		before = after
	}

	// Of the five seeds: two keep, one liquidates, one heals, one is
	// unreadable.
	if got := len(f.service.Tracked()); got != 2 {
		t.Errorf("final tracked size = %d, want 2", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, 10)
	f.service.config.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.service.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected a context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestStoreKeyRoundTrip(t *testing.T) {
	a := common.HexToAddress("0xAbCdEf0123456789abcdef0123456789ABCDEF01")
	key := storeKey(a)
	if key != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("storeKey = %q, want lowercase hex", key)
	}
	parsed, err := parseStoreKey(key)
	if err != nil {
		t.Fatalf("parseStoreKey: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip changed address: %s != %s", parsed.Hex(), a.Hex())
	}

	if _, err := parseStoreKey("not-an-address"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestTrackedEntryStateStrings(t *testing.T) {
	tests := []struct {
		state entity.TrackState
		want  string
	}{
		{entity.StateTracked, "tracked"},
		{entity.StateLiquidating, "liquidating"},
		{entity.StateRemoved, "removed"},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(tt.state); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
