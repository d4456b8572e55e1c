// Package catalog maintains the cached view of the protocol's markets.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Service is a read-through cache over the protocol's reserve list. It
// performs no arithmetic; it is a typed view over chain state, reread
// before every liquidation attempt so the selection math sees fresh
// prices.
type Service struct {
	reader outbound.MarketReader
	logger *slog.Logger

	mu      sync.RWMutex
	markets []*entity.Market
}

// NewService creates a catalog over the given market reader.
func NewService(reader outbound.MarketReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reader: reader,
		logger: logger.With("component", "market-catalog"),
	}
}

// Load fetches all markets and replaces the cached state. On failure the
// previous cache is kept and the caller decides whether stale data is
// acceptable.
func (s *Service) Load(ctx context.Context) error {
	markets, err := s.reader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading markets: %w", err)
	}

	s.mu.Lock()
	s.markets = markets
	s.mu.Unlock()

	s.logger.Info("market catalog loaded", "markets", len(markets))
	return nil
}

// Refresh is Load; the name matches the call sites that re-read prices
// right before a write transaction.
func (s *Service) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Markets returns the cached market list. The slice is shared; callers
// must not mutate it.
func (s *Service) Markets() []*entity.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markets
}
