// Package liquidator selects the debt and collateral legs for a borrower
// past the liquidation threshold, sizes and submits the wrapper call, and
// defends the submission against mempool competitors.
package liquidator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/artifacts"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/pkg/wad"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
	"github.com/meridian-research/aave-liquidator/internal/services/catalog"
	"github.com/meridian-research/aave-liquidator/internal/services/shared"
)

// Outcome is the result of one liquidation attempt, persisted to the
// attempt artifact before the process decides its exit code.
type Outcome struct {
	Borrower        string `json:"borrower"`
	DebtMarket      string `json:"debtMarket,omitempty"`
	CollateralMkt   string `json:"collateralMarket,omitempty"`
	RepayAmount     string `json:"repayAmount,omitempty"`
	RepayHuman      string `json:"repayHuman,omitempty"`
	GasPriceWei     string `json:"gasPriceWei,omitempty"`
	SwapFee         int64  `json:"swapFee,omitempty"`
	EstimatedReward string `json:"estimatedReward,omitempty"`
	RewardHuman     string `json:"rewardHuman,omitempty"`
	TxHash          string `json:"txHash,omitempty"`
	Submitted       bool   `json:"submitted"`
	Confirmed       bool   `json:"confirmed"`
	Error           string `json:"error,omitempty"`
	ElapsedMillis   int64  `json:"elapsedMillis"`
}

// Service runs liquidation attempts end to end.
type Service struct {
	catalog   *catalog.Service
	accounts  outbound.AccountReader
	executor  outbound.LiquidationExecutor
	watchdog  *Watchdog
	fees      *FeePolicy
	artifacts *artifacts.Writer
	telemetry *shared.Telemetry
	logger    *slog.Logger
}

// NewService wires a liquidator service.
func NewService(
	cat *catalog.Service,
	accounts outbound.AccountReader,
	executor outbound.LiquidationExecutor,
	watchdog *Watchdog,
	fees *FeePolicy,
	writer *artifacts.Writer,
	telemetry *shared.Telemetry,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:   cat,
		accounts:  accounts,
		executor:  executor,
		watchdog:  watchdog,
		fees:      fees,
		artifacts: writer,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Execute attempts to liquidate borrower. Every attempt writes its plan
// and outcome to liquidations/<unix_millis>.json, whether or not the
// submission succeeded.
func (s *Service) Execute(ctx context.Context, borrower common.Address) *Outcome {
	started := time.Now()
	label := "liquidation#" + strings.ToLower(borrower.Hex())
	logger := s.logger.With("attempt", label)
	logger.Info("liquidation attempt started")

	outcome := &Outcome{Borrower: strings.ToLower(borrower.Hex())}
	defer func() {
		outcome.ElapsedMillis = time.Since(started).Milliseconds()
		if err := s.artifacts.WriteAttempt(started.UnixMilli(), outcome); err != nil {
			logger.Error("failed to write attempt artifact", "error", err)
		}
		logger.Info("liquidation attempt finished",
			"submitted", outcome.Submitted,
			"confirmed", outcome.Confirmed,
			"elapsed", time.Since(started),
		)
	}()

	// Prices move between ticks; the selection math must not run on a
	// stale catalog.
	if err := s.catalog.Refresh(ctx); err != nil {
		if len(s.catalog.Markets()) == 0 {
			outcome.Error = "market catalog unavailable: " + err.Error()
			logger.Error("aborting attempt, no market data", "error", err)
			return outcome
		}
		logger.Warn("catalog refresh failed, proceeding on cached markets", "error", err)
	}

	legs := s.fetchLegs(ctx, borrower)

	debt := SelectDebtMarket(legs)
	collateral := SelectCollateralMarket(legs)
	if debt == nil || collateral == nil {
		outcome.Error = "no viable debt or collateral leg"
		logger.Warn("aborting attempt", "reason", outcome.Error)
		return outcome
	}

	repay := RepayAmount(debt.Leg.VariableDebt)
	if repay.Sign() == 0 {
		outcome.Error = "repay amount rounds to zero"
		logger.Warn("aborting attempt", "reason", outcome.Error)
		return outcome
	}

	debtEth := DebtValueEth(repay, debt.Market)
	gasPrice := GasPriceWei(debtEth)
	swapFee := s.fees.FeeTier(debt.Market.AToken, collateral.Market.AToken)
	reward := EstimateReward(repay, debt.Market, collateral.Market)

	plan, err := entity.NewLiquidationPlan(borrower, debt.Market, collateral.Market, debt.Leg.VariableDebt, repay, gasPrice, swapFee, reward)
	if err != nil {
		outcome.Error = "invalid plan: " + err.Error()
		logger.Error("aborting attempt", "error", err)
		return outcome
	}

	outcome.DebtMarket = debt.Market.Symbol
	outcome.CollateralMkt = collateral.Market.Symbol
	outcome.RepayAmount = repay.String()
	outcome.RepayHuman = wad.Human(repay, debt.Market.Decimals)
	outcome.GasPriceWei = gasPrice.String()
	outcome.SwapFee = swapFee
	outcome.EstimatedReward = reward.String()
	outcome.RewardHuman = wad.Human(reward, collateral.Market.Decimals)

	logger.Info("liquidation plan built",
		"debtMarket", debt.Market.Symbol,
		"collateralMarket", collateral.Market.Symbol,
		"repay", outcome.RepayHuman,
		"estimatedReward", outcome.RewardHuman,
		"debtValueEth", debtEth,
		"gasPriceWei", gasPrice,
		"swapFee", swapFee,
	)

	tx, err := s.executor.Liquidate(ctx, plan)
	if err != nil {
		outcome.Error = "submission failed: " + err.Error()
		logger.Error("liquidation submission failed", "error", err)
		return outcome
	}

	outcome.Submitted = true
	outcome.TxHash = tx.Hash.Hex()
	s.telemetry.RecordAttempt(ctx, outcome.Borrower)

	outcome.Confirmed = s.watchdog.Run(ctx, borrower, tx)
	return outcome
}

// fetchLegs reads the borrower's position in every market concurrently.
// A nil leg (transient RPC failure) simply drops that market from the
// selection.
func (s *Service) fetchLegs(ctx context.Context, borrower common.Address) []MarketLeg {
	markets := s.catalog.Markets()
	legs := make([]MarketLeg, len(markets))

	var wg sync.WaitGroup
	for i, market := range markets {
		wg.Add(1)
		go func(i int, market *entity.Market) {
			defer wg.Done()
			legs[i] = MarketLeg{
				Market: market,
				Leg:    s.accounts.GetPositionLeg(ctx, market.Asset, borrower),
			}
		}(i, market)
	}
	wg.Wait()
	return legs
}
