package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/artifacts"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/pkg/wad"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// candidate is one eligible borrower during bootstrap selection.
type candidate struct {
	address common.Address
	summary *entity.AccountSummary
}

// candidateDump is the dump.json record for one selected candidate.
type candidateDump struct {
	Address      string  `json:"address"`
	HealthFactor float64 `json:"healthFactor"`
	TotalDebt    float64 `json:"totalDebt"`
	TotalColl    float64 `json:"totalCollateral"`
}

// Bootstrap seeds the tracked set: restore it from the store when it is
// already full, otherwise rank the known (or freshly enumerated) borrower
// universe by health factor and fill the remaining slots.
func (s *Service) Bootstrap(ctx context.Context, writer *artifacts.Writer) error {
	if err := s.catalog.Load(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if writer != nil {
		if err := writer.WriteMarkets(s.catalog.Markets()); err != nil {
			s.logger.Warn("failed to write market dump", "error", err)
		}
	}

	stored, err := s.store.SMembers(ctx, outbound.SetTracked)
	if err != nil {
		return fmt.Errorf("bootstrap: reading tracked set: %w", err)
	}

	existing := make([]*entity.TrackedEntry, 0, len(stored))
	existingSet := make(map[common.Address]struct{}, len(stored))
	for _, key := range stored {
		address, err := parseStoreKey(key)
		if err != nil {
			s.logger.Warn("skipping malformed tracked entry", "key", key)
			continue
		}
		existing = append(existing, &entity.TrackedEntry{Address: address, State: entity.StateTracked})
		existingSet[address] = struct{}{}
	}

	if len(existing) >= s.config.TrackedSetSize {
		s.tracked = existing
		s.logger.Info("tracked set restored from store", "size", len(existing))
		return nil
	}

	candidates, err := s.candidateAddresses(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("bootstrap: candidate set is empty")
	}

	eligible := s.rankCandidates(ctx, candidates, existingSet)

	needed := s.config.TrackedSetSize - len(existing)
	selected, err := s.selectUnblacklisted(ctx, eligible, needed)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	keys := make([]string, 0, len(selected))
	dump := make([]candidateDump, 0, len(selected))
	now := time.Now()
	for _, c := range selected {
		record := candidateDump{
			Address:      storeKey(c.address),
			HealthFactor: wad.ToFloat(c.summary.HealthFactor),
			TotalDebt:    wad.ToFloat(c.summary.TotalDebt),
			TotalColl:    wad.ToFloat(c.summary.TotalCollateral),
		}
		keys = append(keys, record.Address)
		dump = append(dump, record)
		existing = append(existing, &entity.TrackedEntry{
			Address:          c.address,
			LastHealthFactor: c.summary.HealthFactor,
			LastCheckedAt:    now,
			State:            entity.StateTracked,
		})

		if blob, err := json.Marshal(record); err == nil {
			if err := s.store.SetAccountBlob(ctx, record.Address, blob); err != nil {
				s.logger.Warn("failed to write account blob", "address", record.Address, "error", err)
			}
		}
	}

	if len(keys) > 0 {
		if err := s.store.SAdd(ctx, outbound.SetTracked, keys...); err != nil {
			return fmt.Errorf("bootstrap: persisting tracked set: %w", err)
		}
	}
	if writer != nil {
		if err := writer.WriteCandidates(dump); err != nil {
			s.logger.Warn("failed to write candidate dump", "error", err)
		}
	}

	s.tracked = existing
	s.logger.Info("bootstrap complete",
		"tracked", len(existing),
		"restored", len(stored),
		"selected", len(selected),
		"candidates", len(candidates),
	)
	return nil
}

// candidateAddresses returns the known borrower universe, enumerating the
// subgraph and populating the store when it is empty.
func (s *Service) candidateAddresses(ctx context.Context) ([]common.Address, error) {
	known, err := s.store.SMembers(ctx, outbound.SetAllAccounts)
	if err != nil {
		return nil, fmt.Errorf("reading known accounts: %w", err)
	}

	if len(known) > 0 {
		addresses := make([]common.Address, 0, len(known))
		for _, key := range known {
			address, err := parseStoreKey(key)
			if err != nil {
				s.logger.Warn("skipping malformed known account", "key", key)
				continue
			}
			addresses = append(addresses, address)
		}
		return addresses, nil
	}

	addresses, err := s.enumerator.ListBorrowers(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating borrowers: %w", err)
	}

	const chunkSize = 1000
	for start := 0; start < len(addresses); start += chunkSize {
		end := start + chunkSize
		if end > len(addresses) {
			end = len(addresses)
		}
		keys := make([]string, 0, end-start)
		for _, address := range addresses[start:end] {
			keys = append(keys, storeKey(address))
		}
		if err := s.store.SAdd(ctx, outbound.SetAllAccounts, keys...); err != nil {
			return nil, fmt.Errorf("persisting known accounts: %w", err)
		}
	}

	return addresses, nil
}

// rankCandidates fans out summary reads at the bootstrap width, filters
// to positions with real debt strictly above the threshold (anything
// already at or below it and still standing is presumed unprofitable),
// and sorts ascending by health factor.
func (s *Service) rankCandidates(ctx context.Context, addresses []common.Address, exclude map[common.Address]struct{}) []candidate {
	summaries := make([]*entity.AccountSummary, len(addresses))

	sem := make(chan struct{}, s.config.BootstrapFanOut)
	var wg sync.WaitGroup
	for i, address := range addresses {
		if _, ok := exclude[address]; ok {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, address common.Address) {
			defer wg.Done()
			defer func() { <-sem }()
			summaries[i] = s.accounts.GetAccountSummary(ctx, address)
		}(i, address)
	}
	wg.Wait()

	eligible := make([]candidate, 0, len(addresses))
	for i, address := range addresses {
		summary := summaries[i]
		if summary == nil || summary.TotalDebt == nil || summary.HealthFactor == nil {
			continue
		}
		if summary.TotalDebt.Cmp(s.config.MinDebt) <= 0 {
			continue
		}
		if summary.HealthFactor.Cmp(entity.HealthFactorUnit) <= 0 {
			continue
		}
		eligible = append(eligible, candidate{address: address, summary: summary})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].summary.HealthFactor.Cmp(eligible[j].summary.HealthFactor) < 0
	})
	return eligible
}

// selectUnblacklisted takes the first `needed` candidates that are not on
// the blacklist. Each membership check completes before the candidate is
// accepted.
func (s *Service) selectUnblacklisted(ctx context.Context, eligible []candidate, needed int) ([]candidate, error) {
	if needed <= 0 {
		return nil, nil
	}
	selected := make([]candidate, 0, needed)
	for _, c := range eligible {
		if len(selected) == needed {
			break
		}
		blacklisted, err := s.store.SIsMember(ctx, outbound.SetBlacklist, storeKey(c.address))
		if err != nil {
			return nil, fmt.Errorf("checking blacklist: %w", err)
		}
		if blacklisted {
			continue
		}
		selected = append(selected, c)
	}
	return selected, nil
}
