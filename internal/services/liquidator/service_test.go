package liquidator

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/artifacts"
	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/memory"
	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
	"github.com/meridian-research/aave-liquidator/internal/services/catalog"
)

func executeFixture(t *testing.T) (*Service, *memory.ChainReader, *memory.Executor, common.Address, string) {
	t.Helper()

	reader := memory.NewChainReader()
	m1 := mustMarket(t, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", "M1", 6, 10500, wadInt(1))
	m2 := mustMarket(t, "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", "M2", 18, 10750, wadInt(1))
	reader.Markets = []*entity.Market{m1, m2}

	borrower := common.HexToAddress("0x00000000000000000000000000000000DeaDBeef")
	reader.SetLeg(borrower, &entity.PositionLeg{
		Asset:        m1.Asset,
		VariableDebt: big.NewInt(1000 * 1e6),
	})
	reader.SetLeg(borrower, &entity.PositionLeg{
		Asset:            m2.Asset,
		ATokenBalance:    new(big.Int).Mul(big.NewInt(2000), entity.HealthFactorUnit),
		UsedAsCollateral: true,
	})

	executor := memory.NewExecutor(common.HexToAddress("0x1000000000000000000000000000000000000001"))
	stream := memory.NewPendingStream()
	watchdog := testWatchdog(executor, stream)
	watchdog.timeout = 500 * time.Millisecond

	dir := t.TempDir()
	service := NewService(
		catalog.NewService(reader, nil),
		reader,
		executor,
		watchdog,
		NewFeePolicy(nil, nil),
		artifacts.NewWriter(dir),
		nil,
		nil,
	)
	return service, reader, executor, borrower, dir
}

func TestExecuteBuildsAndSubmitsPlan(t *testing.T) {
	service, _, executor, borrower, dir := executeFixture(t)

	// Confirm the submission as soon as it lands so the watchdog exits.
	go func() {
		for executor.SubmittedCount() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		executor.SetStatus(executor.LastSubmitted().Hash, outbound.TxConfirmed)
	}()

	outcome := service.Execute(context.Background(), borrower)

	if !outcome.Submitted {
		t.Fatalf("outcome not submitted: %+v", outcome)
	}
	if !outcome.Confirmed {
		t.Errorf("outcome not confirmed: %+v", outcome)
	}
	if outcome.DebtMarket != "M1" || outcome.CollateralMkt != "M2" {
		t.Errorf("legs = %s/%s, want M1/M2", outcome.DebtMarket, outcome.CollateralMkt)
	}
	if outcome.RepayAmount != "500000000" {
		t.Errorf("repay = %s, want 500000000", outcome.RepayAmount)
	}
	if outcome.EstimatedReward != "537500000000000000000" {
		t.Errorf("reward = %s, want 537500000000000000000", outcome.EstimatedReward)
	}
	if outcome.SwapFee != FeeTierNormal {
		t.Errorf("swap fee = %d, want %d", outcome.SwapFee, FeeTierNormal)
	}

	// Every attempt leaves an artifact behind.
	entries, err := os.ReadDir(filepath.Join(dir, "liquidations"))
	if err != nil || len(entries) != 1 {
		t.Errorf("attempt artifacts = %v (err %v), want exactly one file", entries, err)
	}
}

func TestExecuteWritesArtifactOnSubmissionFailure(t *testing.T) {
	service, _, executor, borrower, dir := executeFixture(t)
	executor.SubmitErr = context.DeadlineExceeded

	outcome := service.Execute(context.Background(), borrower)

	if outcome.Submitted {
		t.Fatal("outcome marked submitted despite send failure")
	}
	if outcome.Error == "" {
		t.Error("expected an error in the outcome")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "liquidations"))
	if err != nil || len(entries) != 1 {
		t.Errorf("attempt artifacts = %v (err %v), want exactly one file", entries, err)
	}
}

func TestExecuteAbortsWithoutViableLegs(t *testing.T) {
	service, reader, executor, borrower, _ := executeFixture(t)
	reader.Legs = map[common.Address]map[common.Address]*entity.PositionLeg{}

	outcome := service.Execute(context.Background(), borrower)
	if outcome.Submitted {
		t.Fatal("submitted a plan with no legs")
	}
	if executor.SubmittedCount() != 0 {
		t.Errorf("submitted count = %d, want 0", executor.SubmittedCount())
	}
}

func TestExecuteAbortsWhenCatalogNeverLoaded(t *testing.T) {
	service, reader, executor, borrower, _ := executeFixture(t)
	reader.LoadAllErr = outbound.ErrUpstreamUnavailable

	outcome := service.Execute(context.Background(), borrower)
	if outcome.Submitted {
		t.Fatal("submitted without market data")
	}
	if executor.SubmittedCount() != 0 {
		t.Errorf("submitted count = %d, want 0", executor.SubmittedCount())
	}
}
