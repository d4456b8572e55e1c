package liquidator

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
	"github.com/meridian-research/aave-liquidator/internal/services/shared"
)

const (
	// WatchdogTimeout is the hard wall-clock budget for the race, from
	// dispatch to give-up.
	WatchdogTimeout = 30 * time.Second

	// statusPollInterval is how often the watchdog checks its own
	// transactions for confirmation.
	statusPollInterval = 1 * time.Second
)

// Watchdog observes the mempool after a liquidation is submitted and
// re-broadcasts at the same nonce with bumped gas whenever a competitor
// out-bids us on the same borrower.
type Watchdog struct {
	executor  outbound.LiquidationExecutor
	stream    outbound.PendingTxSubscriber
	telemetry *shared.Telemetry
	logger    *slog.Logger

	timeout      time.Duration
	pollInterval time.Duration
}

// NewWatchdog creates a Watchdog with the default 30 s budget.
func NewWatchdog(executor outbound.LiquidationExecutor, stream outbound.PendingTxSubscriber, telemetry *shared.Telemetry, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		executor:     executor,
		stream:       stream,
		telemetry:    telemetry,
		logger:       logger.With("component", "mempool-watchdog"),
		timeout:      WatchdogTimeout,
		pollInterval: statusPollInterval,
	}
}

// Run races competitors until one of our transactions confirms, all of
// them fail, or the deadline passes. It returns true when a transaction
// in our edited set confirmed.
func (w *Watchdog) Run(ctx context.Context, borrower common.Address, first *outbound.SubmittedTx) bool {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	hashes, err := w.stream.Subscribe(ctx)
	if err != nil {
		w.logger.Warn("mempool subscription failed, waiting on confirmation only", "error", err)
		hashes = nil
	}

	// Competitor calldata carries the borrower address; match on its hex
	// form without the 0x prefix.
	needle := strings.ToLower(borrower.Hex()[2:])

	edited := map[common.Hash]*outbound.SubmittedTx{first.Hash: first}
	current := first

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Warn("watchdog deadline reached", "borrower", borrower.Hex())
			return false

		case hash, ok := <-hashes:
			if !ok {
				hashes = nil
				continue
			}
			current = w.inspect(ctx, hash, needle, edited, current)

		case <-ticker.C:
			confirmed, exhausted := w.checkEdited(ctx, edited)
			if confirmed {
				w.logger.Info("liquidation confirmed", "borrower", borrower.Hex())
				return true
			}
			if exhausted {
				w.logger.Warn("all broadcast transactions failed", "borrower", borrower.Hex())
				return false
			}
		}
	}
}

// inspect decides whether a pending transaction is a competing liquidation
// and bumps our bid when it pays more than we do.
func (w *Watchdog) inspect(ctx context.Context, hash common.Hash, needle string, edited map[common.Hash]*outbound.SubmittedTx, current *outbound.SubmittedTx) *outbound.SubmittedTx {
	observed, err := w.executor.PendingByHash(ctx, hash)
	if err != nil || observed == nil {
		return current
	}
	if observed.From == w.executor.Self() {
		return current
	}
	if !strings.Contains(strings.ToLower(hex.EncodeToString(observed.Input)), needle) {
		return current
	}

	if observed.GasPrice == nil || observed.GasPrice.Cmp(current.GasPrice) <= 0 {
		w.logger.Info("competitor detected but we are still ahead",
			"competitor", observed.Hash.Hex(),
			"competitorGasWei", observed.GasPrice,
			"ourGasWei", current.GasPrice,
		)
		return current
	}

	bumped := BumpGasPrice(observed.GasPrice)
	next, err := w.executor.Rebroadcast(ctx, current, bumped)
	if err != nil {
		w.logger.Error("failed to rebroadcast with bumped gas", "error", err)
		return current
	}

	edited[next.Hash] = next
	w.telemetry.RecordGasBump(ctx)
	w.logger.Info("out-bid competitor",
		"competitor", observed.Hash.Hex(),
		"competitorGasWei", observed.GasPrice,
		"newGasWei", bumped,
		"nonce", next.Nonce,
	)
	return next
}

// checkEdited polls every transaction we broadcast. It reports whether any
// confirmed, and whether the set drained without a confirmation.
func (w *Watchdog) checkEdited(ctx context.Context, edited map[common.Hash]*outbound.SubmittedTx) (confirmed, exhausted bool) {
	for hash := range edited {
		status, err := w.executor.Status(ctx, hash)
		if err != nil {
			continue
		}
		switch status {
		case outbound.TxConfirmed:
			return true, false
		case outbound.TxFailed:
			delete(edited, hash)
		}
	}
	return false, len(edited) == 0
}
