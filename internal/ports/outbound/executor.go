package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
)

// SubmittedTx is our view of one broadcast liquidation transaction. It
// carries everything needed to re-sign at the same nonce with a higher
// gas price.
type SubmittedTx struct {
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// TxStatus is the chain-side status of a submitted transaction.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxFailed
)

// ObservedTx is a competitor's pending transaction as seen in the mempool.
type ObservedTx struct {
	Hash     common.Hash
	From     common.Address
	GasPrice *big.Int
	Input    []byte
}

// LiquidationExecutor submits liquidation calls through the on-chain
// wrapper contract and re-broadcasts them at the same nonce when out-bid.
type LiquidationExecutor interface {
	// Liquidate signs and broadcasts the wrapper call for the plan.
	Liquidate(ctx context.Context, plan *entity.LiquidationPlan) (*SubmittedTx, error)

	// Rebroadcast re-signs prev with identical nonce, data, value and gas
	// limit but the given gas price, and broadcasts it.
	Rebroadcast(ctx context.Context, prev *SubmittedTx, gasPrice *big.Int) (*SubmittedTx, error)

	// Status reports whether hash is pending, mined successfully, or
	// mined reverted.
	Status(ctx context.Context, hash common.Hash) (TxStatus, error)

	// PendingByHash fetches a pending transaction's sender, gas price and
	// calldata. Returns nil if the transaction is unknown or already mined.
	PendingByHash(ctx context.Context, hash common.Hash) (*ObservedTx, error)

	// Self is the submitter account's public address.
	Self() common.Address
}

// PendingTxSubscriber streams hashes of transactions entering the mempool.
type PendingTxSubscriber interface {
	Subscribe(ctx context.Context) (<-chan common.Hash, error)
	Unsubscribe() error
}
