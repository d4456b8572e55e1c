package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time check that Executor implements the executor port.
var _ outbound.LiquidationExecutor = (*Executor)(nil)

// LiquidationGasLimit is the gas limit for every wrapper call. The wrapper
// performs flash-loan, repay, swap and flash-loan repayment atomically, so
// the limit is generous.
const LiquidationGasLimit = uint64(28_000_000)

// Executor signs and broadcasts liquidation transactions through the
// on-chain wrapper contract.
type Executor struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	self       common.Address
	contract   common.Address
	chainID    *big.Int
	signer     types.Signer
	abi        *abi.ABI
	logger     *slog.Logger
}

// NewExecutor creates an Executor for the given wrapper contract and
// signing key.
func NewExecutor(client *ethclient.Client, privateKeyHex string, contract common.Address, chainID *big.Int, logger *slog.Logger) (*Executor, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	liquidatorABI, err := parseABI("LiquidatorForAave", liquidatorABIJSON)
	if err != nil {
		return nil, err
	}

	return &Executor{
		client:     client,
		privateKey: privateKey,
		self:       crypto.PubkeyToAddress(privateKey.PublicKey),
		contract:   contract,
		chainID:    chainID,
		signer:     types.LatestSignerForChainID(chainID),
		abi:        liquidatorABI,
		logger:     logger.With("component", "chain-executor"),
	}, nil
}

// Self returns the submitter account's address.
func (e *Executor) Self() common.Address {
	return e.self
}

// Liquidate packs liquidate(borrower, debtAToken, collateralAToken,
// repayAmount, swapFee), signs a legacy transaction at the plan's gas
// price and broadcasts it.
func (e *Executor) Liquidate(ctx context.Context, plan *entity.LiquidationPlan) (*outbound.SubmittedTx, error) {
	data, err := e.abi.Pack("liquidate",
		plan.Borrower,
		plan.DebtMarket.AToken,
		plan.CollateralMarket.AToken,
		plan.RepayAmount,
		big.NewInt(plan.SwapFee),
	)
	if err != nil {
		return nil, fmt.Errorf("packing liquidate call: %w", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.self)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	submitted := &outbound.SubmittedTx{
		Nonce:    nonce,
		GasPrice: plan.GasPrice,
		To:       e.contract,
		Data:     data,
		Value:    big.NewInt(0),
		GasLimit: LiquidationGasLimit,
	}
	return e.signAndSend(ctx, submitted)
}

// Rebroadcast re-signs prev at the same nonce with the new gas price.
// Only the highest-fee transaction for that nonce will be mined, so the
// liquidation executes at most once on chain.
func (e *Executor) Rebroadcast(ctx context.Context, prev *outbound.SubmittedTx, gasPrice *big.Int) (*outbound.SubmittedTx, error) {
	next := &outbound.SubmittedTx{
		Nonce:    prev.Nonce,
		GasPrice: gasPrice,
		To:       prev.To,
		Data:     prev.Data,
		Value:    prev.Value,
		GasLimit: prev.GasLimit,
	}
	return e.signAndSend(ctx, next)
}

func (e *Executor) signAndSend(ctx context.Context, submitted *outbound.SubmittedTx) (*outbound.SubmittedTx, error) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    submitted.Nonce,
		GasPrice: submitted.GasPrice,
		Gas:      submitted.GasLimit,
		To:       &submitted.To,
		Value:    submitted.Value,
		Data:     submitted.Data,
	})

	signedTx, err := types.SignTx(tx, e.signer, e.privateKey)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("broadcasting transaction: %w", err)
	}

	submitted.Hash = signedTx.Hash()
	e.logger.Info("transaction broadcast",
		"hash", submitted.Hash.Hex(),
		"nonce", submitted.Nonce,
		"gasPriceWei", submitted.GasPrice,
	)
	return submitted, nil
}

// Status reports whether hash is still pending, mined successfully, or
// mined reverted.
func (e *Executor) Status(ctx context.Context, hash common.Hash) (outbound.TxStatus, error) {
	receipt, err := e.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return outbound.TxPending, nil
		}
		return outbound.TxPending, fmt.Errorf("fetching receipt: %w", err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return outbound.TxConfirmed, nil
	}
	return outbound.TxFailed, nil
}

// PendingByHash fetches a pending transaction's sender, gas price and
// calldata. Returns nil if the transaction is unknown or already mined.
func (e *Executor) PendingByHash(ctx context.Context, hash common.Hash) (*outbound.ObservedTx, error) {
	tx, isPending, err := e.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching transaction %s: %w", hash.Hex(), err)
	}
	if !isPending {
		return nil, nil
	}

	chainID := tx.ChainId()
	if chainID == nil || chainID.Sign() == 0 {
		chainID = e.chainID
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("recovering sender of %s: %w", hash.Hex(), err)
	}

	return &outbound.ObservedTx{
		Hash:     hash,
		From:     from,
		GasPrice: tx.GasPrice(),
		Input:    tx.Data(),
	}, nil
}
