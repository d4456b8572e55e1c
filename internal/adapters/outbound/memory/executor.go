package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time checks for the submission ports.
var (
	_ outbound.LiquidationExecutor = (*Executor)(nil)
	_ outbound.PendingTxSubscriber = (*PendingStream)(nil)
)

// Executor is an in-memory LiquidationExecutor. It records submissions and
// lets tests drive transaction statuses and mempool contents.
type Executor struct {
	mu sync.Mutex

	SelfAddr common.Address
	// SubmitErr forces Liquidate to fail.
	SubmitErr error

	Submitted []*outbound.SubmittedTx
	Statuses  map[common.Hash]outbound.TxStatus
	Observed  map[common.Hash]*outbound.ObservedTx

	nextNonce uint64
}

// NewExecutor creates an in-memory executor submitting from self.
func NewExecutor(self common.Address) *Executor {
	return &Executor{
		SelfAddr: self,
		Statuses: make(map[common.Hash]outbound.TxStatus),
		Observed: make(map[common.Hash]*outbound.ObservedTx),
	}
}

func (e *Executor) Self() common.Address { return e.SelfAddr }

func (e *Executor) Liquidate(_ context.Context, plan *entity.LiquidationPlan) (*outbound.SubmittedTx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.SubmitErr != nil {
		return nil, e.SubmitErr
	}

	data := append([]byte("liquidate:"), plan.Borrower.Bytes()...)
	tx := &outbound.SubmittedTx{
		Hash:     e.hashFor(e.nextNonce, plan.GasPrice),
		Nonce:    e.nextNonce,
		GasPrice: plan.GasPrice,
		To:       common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		Data:     data,
		Value:    big.NewInt(0),
		GasLimit: 28_000_000,
	}
	e.nextNonce++
	e.Submitted = append(e.Submitted, tx)
	e.Statuses[tx.Hash] = outbound.TxPending
	return tx, nil
}

func (e *Executor) Rebroadcast(_ context.Context, prev *outbound.SubmittedTx, gasPrice *big.Int) (*outbound.SubmittedTx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &outbound.SubmittedTx{
		Hash:     e.hashFor(prev.Nonce, gasPrice),
		Nonce:    prev.Nonce,
		GasPrice: gasPrice,
		To:       prev.To,
		Data:     prev.Data,
		Value:    prev.Value,
		GasLimit: prev.GasLimit,
	}
	e.Submitted = append(e.Submitted, tx)
	e.Statuses[tx.Hash] = outbound.TxPending
	return tx, nil
}

func (e *Executor) Status(_ context.Context, hash common.Hash) (outbound.TxStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if status, ok := e.Statuses[hash]; ok {
		return status, nil
	}
	return outbound.TxPending, nil
}

func (e *Executor) PendingByHash(_ context.Context, hash common.Hash) (*outbound.ObservedTx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Observed[hash], nil
}

// SetStatus drives the status of a submitted transaction.
func (e *Executor) SetStatus(hash common.Hash, status outbound.TxStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Statuses[hash] = status
}

// AddObserved plants a competitor transaction in the fake mempool and
// returns its hash.
func (e *Executor) AddObserved(from common.Address, gasPrice *big.Int, input []byte) common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	hash := crypto.Keccak256Hash(append(from.Bytes(), input...))
	e.Observed[hash] = &outbound.ObservedTx{Hash: hash, From: from, GasPrice: gasPrice, Input: input}
	return hash
}

// SubmittedCount returns how many transactions were broadcast.
func (e *Executor) SubmittedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Submitted)
}

// LastSubmitted returns the most recent broadcast, or nil.
func (e *Executor) LastSubmitted() *outbound.SubmittedTx {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Submitted) == 0 {
		return nil
	}
	return e.Submitted[len(e.Submitted)-1]
}

func (e *Executor) hashFor(nonce uint64, gasPrice *big.Int) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%d:%s", nonce, gasPrice)))
}

// PendingStream is an in-memory PendingTxSubscriber fed by tests.
type PendingStream struct {
	mu     sync.Mutex
	ch     chan common.Hash
	closed bool
}

// NewPendingStream creates a buffered in-memory pending-tx stream.
func NewPendingStream() *PendingStream {
	return &PendingStream{ch: make(chan common.Hash, 64)}
}

func (s *PendingStream) Subscribe(_ context.Context) (<-chan common.Hash, error) {
	return s.ch, nil
}

func (s *PendingStream) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Emit pushes a pending-tx hash into the stream.
func (s *PendingStream) Emit(hash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- hash
	}
}
