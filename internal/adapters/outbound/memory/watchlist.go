// Package memory provides in-memory implementations of the outbound ports
// for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time check that Watchlist implements outbound.WatchlistStore.
var _ outbound.WatchlistStore = (*Watchlist)(nil)

// Watchlist is an in-memory WatchlistStore.
type Watchlist struct {
	mu    sync.RWMutex
	sets  map[string]map[string]struct{}
	blobs map[string][]byte
}

// NewWatchlist creates an empty in-memory watchlist store.
func NewWatchlist() *Watchlist {
	return &Watchlist{
		sets:  make(map[string]map[string]struct{}),
		blobs: make(map[string][]byte),
	}
}

func (w *Watchlist) SMembers(_ context.Context, set string) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	members := make([]string, 0, len(w.sets[set]))
	for m := range w.sets[set] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (w *Watchlist) SAdd(_ context.Context, set string, members ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sets[set] == nil {
		w.sets[set] = make(map[string]struct{})
	}
	for _, m := range members {
		w.sets[set][m] = struct{}{}
	}
	return nil
}

func (w *Watchlist) SRem(_ context.Context, set string, members ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range members {
		delete(w.sets[set], m)
	}
	return nil
}

func (w *Watchlist) SIsMember(_ context.Context, set, member string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.sets[set][member]
	return ok, nil
}

func (w *Watchlist) SetAccountBlob(_ context.Context, address string, blob []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blobs[address] = blob
	return nil
}

// AccountBlob returns a previously written blob, for test assertions.
func (w *Watchlist) AccountBlob(address string) []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blobs[address]
}
