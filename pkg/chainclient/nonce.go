package chainclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/logger"
)

// TxState is the lifecycle of a transaction tracked by the nonce manager
type TxState int

const (
	// TxPending indicates transaction is pending
	TxPending TxState = iota
	// TxMined indicates transaction is mined
	TxMined
	// TxFailed indicates transaction has failed
	TxFailed
)

// TransactionRecord tracks details about a transaction
type TransactionRecord struct {
	Hash      common.Hash
	Nonce     uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	State     TxState
}

// PendingNoncer is the part of the backend the nonce manager needs
type PendingNoncer interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager handles nonce allocation and tracking per sending account
type NonceManager struct {
	accounts map[common.Address]*accountNonces
	// resyncAfter forces a refresh from the chain when the local view gets old
	resyncAfter time.Duration
	logger      logger.Logger
	mu          sync.Mutex
}

type accountNonces struct {
	currentNonce uint64
	pendingTxs   map[uint64]*TransactionRecord
	lastSync     time.Time
	// adopt takes the chain's pending nonce as-is on next sync, even when lower
	adopt bool
	mu    sync.Mutex
}

// NewNonceManager creates a new nonce manager
func NewNonceManager(log logger.Logger) *NonceManager {
	return &NonceManager{
		accounts:    make(map[common.Address]*accountNonces),
		resyncAfter: 5 * time.Minute,
		logger:      log,
	}
}

func (nm *NonceManager) account(address common.Address) *accountNonces {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	a, exists := nm.accounts[address]
	if !exists {
		a = &accountNonces{pendingTxs: make(map[uint64]*TransactionRecord)}
		nm.accounts[address] = a
	}
	return a
}

// Next reserves and returns the next available nonce for address
func (nm *NonceManager) Next(ctx context.Context, source PendingNoncer, address common.Address) (uint64, error) {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.adopt || a.lastSync.IsZero() || time.Since(a.lastSync) > nm.resyncAfter {
		if err := nm.sync(ctx, a, source, address); err != nil {
			return 0, err
		}
	}

	nonce := a.currentNonce
	a.currentNonce++
	return nonce, nil
}

// Sync refreshes the local nonce from the chain's pending nonce
func (nm *NonceManager) Sync(ctx context.Context, source PendingNoncer, address common.Address) error {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	return nm.sync(ctx, a, source, address)
}

// sync must be called with a.mu held
func (nm *NonceManager) sync(ctx context.Context, a *accountNonces, source PendingNoncer, address common.Address) error {
	nonce, err := source.PendingNonceAt(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get pending nonce: %w", err)
	}

	if nonce > a.currentNonce || (a.adopt && len(a.pendingTxs) == 0) {
		if nonce != a.currentNonce {
			nm.logger.Debug("Updating nonce for %s: %d -> %d", address.Hex(), a.currentNonce, nonce)
		}
		a.currentNonce = nonce
	}
	a.adopt = false
	a.lastSync = time.Now()
	return nil
}

// Track records a broadcast transaction
func (nm *NonceManager) Track(address common.Address, txHash common.Hash, nonce uint64) {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.pendingTxs[nonce] = &TransactionRecord{
		Hash:      txHash,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
		State:     TxPending,
	}
	nm.logger.Debug("Tracking transaction for %s with nonce %d: %s", address.Hex(), nonce, txHash.Hex())
}

// Release gives back a nonce whose transaction was never broadcast
func (nm *NonceManager) Release(address common.Address, nonce uint64) {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	if nonce+1 == a.currentNonce {
		a.currentNonce = nonce
		nm.logger.Debug("Released nonce %d for %s", nonce, address.Hex())
		return
	}
	// a later nonce is already allocated, let the chain tell us where we are
	a.adopt = true
}

// MarkMined removes a mined transaction from the pending set.
// A mined transaction consumes its nonce whether it succeeded or reverted.
func (nm *NonceManager) MarkMined(address common.Address, nonce uint64) bool {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, exists := a.pendingTxs[nonce]
	if !exists {
		nm.logger.Debug("No pending transaction found for %s, nonce %d", address.Hex(), nonce)
		return false
	}

	tx.State = TxMined
	tx.UpdatedAt = time.Now()
	delete(a.pendingTxs, nonce)
	return true
}

// MarkFailed drops a transaction that will never be mined, typically after a wait timeout.
// The next allocation resynchronizes with the chain.
func (nm *NonceManager) MarkFailed(address common.Address, nonce uint64) {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, exists := a.pendingTxs[nonce]
	if !exists {
		return
	}
	tx.State = TxFailed
	tx.UpdatedAt = time.Now()
	delete(a.pendingTxs, nonce)
	a.adopt = true
	nm.logger.Debug("Transaction failed for %s, nonce %d: %s", address.Hex(), nonce, tx.Hash.Hex())
}

// PendingCount returns the number of pending transactions for address
func (nm *NonceManager) PendingCount(address common.Address) int {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.pendingTxs)
}

// NonceOf returns the nonce a tracked transaction was sent with
func (nm *NonceManager) NonceOf(address common.Address, txHash common.Hash) (uint64, bool) {
	a := nm.account(address)

	a.mu.Lock()
	defer a.mu.Unlock()

	for nonce, tx := range a.pendingTxs {
		if tx.Hash == txHash {
			return nonce, true
		}
	}
	return 0, false
}
