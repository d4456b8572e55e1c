// Package tracker owns the bounded tracked set and drives the control
// loop: re-evaluate every tracked borrower's health factor each iteration,
// untrack healed or unreadable accounts, and dispatch the liquidator the
// moment an account crosses the threshold.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/pkg/wad"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
	"github.com/meridian-research/aave-liquidator/internal/services/catalog"
	"github.com/meridian-research/aave-liquidator/internal/services/shared"
)

// DispatchFunc receives a borrower the moment it is observed liquidatable.
// The tracker fires it from a single worker so at most one attempt is in
// flight at a time.
type DispatchFunc func(ctx context.Context, borrower common.Address)

// Config holds tracker parameters.
type Config struct {
	// TrackedSetSize is K, the bound on the tracked set.
	TrackedSetSize int

	// BootstrapFanOut is the parallel width for bootstrap summary reads.
	BootstrapFanOut int

	// UpperBound is the hysteresis ceiling in wad. Accounts above it are
	// untracked.
	UpperBound *big.Int

	// MinDebt filters dust positions at bootstrap, in wad of the
	// numeraire.
	MinDebt *big.Int

	// Interval is an optional pause between iterations. Zero means
	// back-to-back, which is the latency-critical default.
	Interval time.Duration

	// DispatchQueueSize bounds the liquidation queue.
	DispatchQueueSize int

	Logger    *slog.Logger
	Telemetry *shared.Telemetry
}

// DefaultUpperBound is the hysteresis ceiling: exactly 1.01e18.
func DefaultUpperBound() *big.Int {
	return new(big.Int).Mul(big.NewInt(101), big.NewInt(1e16))
}

// ConfigDefaults returns the default tracker parameters.
func ConfigDefaults() Config {
	return Config{
		TrackedSetSize:    200,
		BootstrapFanOut:   500,
		UpperBound:        DefaultUpperBound(),
		MinDebt:           new(big.Int).Exp(big.NewInt(10), big.NewInt(14), nil),
		Interval:          0,
		DispatchQueueSize: 16,
	}
}

// Service owns the in-memory tracked set. The durable store is updated on
// every state transition and is authoritative across restarts, lagging the
// memory view by at most one iteration.
type Service struct {
	config     Config
	catalog    *catalog.Service
	accounts   outbound.AccountReader
	store      outbound.WatchlistStore
	enumerator outbound.AccountEnumerator
	dispatch   DispatchFunc
	logger     *slog.Logger

	// tracked is replaced wholesale at the end of each iteration; it is
	// never mutated during the fan-out.
	tracked []*entity.TrackedEntry

	dispatchCh chan common.Address
	workerOnce sync.Once
}

// NewService wires a tracker.
func NewService(
	config Config,
	cat *catalog.Service,
	accounts outbound.AccountReader,
	store outbound.WatchlistStore,
	enumerator outbound.AccountEnumerator,
	dispatch DispatchFunc,
) *Service {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	defaults := ConfigDefaults()
	if config.TrackedSetSize <= 0 {
		config.TrackedSetSize = defaults.TrackedSetSize
	}
	if config.BootstrapFanOut <= 0 {
		config.BootstrapFanOut = defaults.BootstrapFanOut
	}
	if config.UpperBound == nil {
		config.UpperBound = defaults.UpperBound
	}
	if config.MinDebt == nil {
		config.MinDebt = defaults.MinDebt
	}
	if config.DispatchQueueSize <= 0 {
		config.DispatchQueueSize = defaults.DispatchQueueSize
	}

	return &Service{
		config:     config,
		catalog:    cat,
		accounts:   accounts,
		store:      store,
		enumerator: enumerator,
		dispatch:   dispatch,
		logger:     config.Logger.With("component", "tracker"),
		dispatchCh: make(chan common.Address, config.DispatchQueueSize),
	}
}

// Tracked returns a snapshot of the tracked addresses, for tests and
// diagnostics.
func (s *Service) Tracked() []*entity.TrackedEntry {
	out := make([]*entity.TrackedEntry, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// Run executes iterations until the context is cancelled. Iterations are
// strictly sequential; the liquidation worker runs beside them.
func (s *Service) Run(ctx context.Context) error {
	s.startWorker(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.Iterate(ctx)

		if s.config.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.Interval):
			}
		}
	}
}

// startWorker launches the single liquidation worker feeding dispatches
// one at a time.
func (s *Service) startWorker(ctx context.Context) {
	s.workerOnce.Do(func() {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case borrower := <-s.dispatchCh:
					s.dispatch(ctx, borrower)
				}
			}
		}()
	})
}

// Iterate runs one pass: fan out summary reads over the tracked set,
// apply the state machine, dispatch liquidations, persist removals, and
// replace the in-memory set.
func (s *Service) Iterate(ctx context.Context) {
	before := s.tracked
	if len(before) == 0 {
		s.logger.Debug("tracked set empty, nothing to do")
		s.config.Telemetry.RecordIteration(ctx, 0, 0)
		return
	}

	// The set is already bounded by K, so the fan-out is unbounded.
	summaries := make([]*entity.AccountSummary, len(before))
	var wg sync.WaitGroup
	for i, entry := range before {
		wg.Add(1)
		go func(i int, address common.Address) {
			defer wg.Done()
			summaries[i] = s.accounts.GetAccountSummary(ctx, address)
		}(i, entry.Address)
	}
	wg.Wait()

	now := time.Now()
	kept := make([]*entity.TrackedEntry, 0, len(before))
	var removed []string
	var healed, failed, dispatched int
	minHF := (*big.Int)(nil)

	for i, entry := range before {
		summary := summaries[i]
		switch Decide(summary, s.config.UpperBound) {
		case ActionLiquidate:
			entry.State = entity.StateLiquidating
			entry.LastHealthFactor = summary.HealthFactor
			s.enqueue(entry.Address)
			dispatched++
			// The dispatch is issued; the entry leaves the set so this
			// run never attempts the borrower twice.
			entry.State = entity.StateRemoved
			removed = append(removed, storeKey(entry.Address))

		case ActionRemove:
			entry.State = entity.StateRemoved
			removed = append(removed, storeKey(entry.Address))
			if summary == nil {
				failed++
			} else {
				healed++
			}

		case ActionKeep:
			entry.LastHealthFactor = summary.HealthFactor
			entry.LastCheckedAt = now
			kept = append(kept, entry)
			if minHF == nil || summary.HealthFactor.Cmp(minHF) < 0 {
				minHF = summary.HealthFactor
			}
		}
	}

	if len(removed) > 0 {
		if err := s.store.SRem(ctx, outbound.SetTracked, removed...); err != nil {
			s.logger.Error("failed to persist removals", "count", len(removed), "error", err)
		}
	}

	s.tracked = kept

	minHFFloat := 0.0
	if minHF != nil {
		minHFFloat = wad.ToFloat(minHF)
	}
	s.logger.Info("iteration complete",
		"before", len(before),
		"after", len(kept),
		"healed", healed,
		"unreadable", failed,
		"dispatched", dispatched,
		"minHealthFactor", minHFFloat,
	)
	s.config.Telemetry.RecordIteration(ctx, len(kept), minHFFloat)
	s.config.Telemetry.RecordUntracked(ctx, healed, "healed")
	s.config.Telemetry.RecordUntracked(ctx, failed, "unreadable")
	s.config.Telemetry.RecordUntracked(ctx, dispatched, "liquidating")
}

// enqueue hands the borrower to the liquidation worker without blocking
// the loop.
func (s *Service) enqueue(borrower common.Address) {
	select {
	case s.dispatchCh <- borrower:
	default:
		s.logger.Warn("dispatch queue full, dropping liquidation", "borrower", borrower.Hex())
	}
}

// storeKey is the canonical store representation of an address.
func storeKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func parseStoreKey(key string) (common.Address, error) {
	if !common.IsHexAddress(key) {
		return common.Address{}, fmt.Errorf("malformed address %q", key)
	}
	return common.HexToAddress(key), nil
}
