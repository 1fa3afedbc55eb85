package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase is a state of the orchestration state machine
type Phase string

const (
	PhaseIdle                         Phase = "Idle"
	PhaseCheckingAllowance            Phase = "CheckingAllowance"
	PhaseApprovalNeeded               Phase = "ApprovalNeeded"
	PhaseApproving                    Phase = "Approving"
	PhaseAwaitingApprovalConfirmation Phase = "AwaitingApprovalConfirmation"
	PhaseSubmitting                   Phase = "Submitting"
	PhaseAwaitingActionConfirmation   Phase = "AwaitingActionConfirmation"
	PhasePollingIndexer               Phase = "PollingIndexer"
	PhaseCompleted                    Phase = "Completed"
	PhaseErrored                      Phase = "Errored"
	PhaseCancelled                    Phase = "Cancelled"
)

// IsTerminal reports whether no further transition can happen from the phase
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseErrored || p == PhaseCancelled
}

// IsCancellable reports whether the phase precedes the action broadcast
func (p Phase) IsCancellable() bool {
	switch p {
	case PhaseIdle, PhaseCheckingAllowance, PhaseApprovalNeeded, PhaseApproving, PhaseAwaitingApprovalConfirmation:
		return true
	}
	return false
}

// RunSnapshot is a read-only copy of an orchestration run at one point in time
type RunSnapshot struct {
	ID     string            `json:"id"`
	Intent TransactionIntent `json:"intent"`
	Phase  Phase             `json:"phase"`
	// History lists every phase entered, starting with Idle
	History         []Phase      `json:"history"`
	ApprovalTxHash  *common.Hash `json:"approvalTxHash,omitempty"`
	ActionTxHash    *common.Hash `json:"actionTxHash,omitempty"`
	IndexedEntityID string       `json:"indexedEntityId,omitempty"`
	// IndexingDelayed marks a completed run whose read-model had not caught up
	IndexingDelayed bool      `json:"indexingDelayed"`
	IndexerAttempts int       `json:"indexerAttempts"`
	Error           *RunError `json:"error,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Visited reports whether the run has entered phase at any point
func (s RunSnapshot) Visited(phase Phase) bool {
	for _, p := range s.History {
		if p == phase {
			return true
		}
	}
	return false
}

// ConfirmationStatus is the outcome of waiting for a transaction to be mined
type ConfirmationStatus int

const (
	// TxConfirmed indicates the transaction was mined and succeeded
	TxConfirmed ConfirmationStatus = iota
	// TxReverted indicates the transaction was mined but failed on-chain
	TxReverted
	// TxTimedOut indicates no receipt arrived within the wait budget
	TxTimedOut
)

func (s ConfirmationStatus) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	case TxTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Confirmation is the result of a confirmation wait
type Confirmation struct {
	TxHash      common.Hash
	Status      ConfirmationStatus
	BlockNumber uint64
	GasUsed     uint64
}

// IndexStatus is the indexer's answer for one transaction hash
type IndexStatus struct {
	Indexed  bool   `json:"indexed"`
	EntityID string `json:"entityId,omitempty"`
}
