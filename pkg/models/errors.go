package models

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrorKind classifies why a run stopped or degraded
type ErrorKind string

const (
	KindReadError           ErrorKind = "ReadError"
	KindSubmissionError     ErrorKind = "SubmissionError"
	KindRevertError         ErrorKind = "RevertError"
	KindTimeoutError        ErrorKind = "TimeoutError"
	KindIndexerTimeoutError ErrorKind = "IndexerTimeoutError"
	KindConcurrentRunError  ErrorKind = "ConcurrentRunError"
	KindInternalError       ErrorKind = "InternalError"
)

// SubmissionReason separates "you said no" from "something broke"
type SubmissionReason string

const (
	UserRejected    SubmissionReason = "UserRejected"
	BroadcastFailed SubmissionReason = "BroadcastFailed"
)

var (
	// ErrInvalidIntent is wrapped by every intent validation failure
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrIndexerTimeout is returned when the indexer did not report the transaction within the retry budget
	ErrIndexerTimeout = errors.New("indexer did not report the transaction in time")
)

// ReadError reports a failed contract-state read
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// SubmissionError reports a transaction that was never broadcast
type SubmissionError struct {
	Reason SubmissionReason
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Reason == UserRejected {
		return fmt.Sprintf("transaction rejected by user: %v", e.Err)
	}
	return fmt.Sprintf("transaction broadcast failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ConcurrentRunError rejects a start while another run is active on the same owner and target
type ConcurrentRunError struct {
	Owner       common.Address
	Target      common.Address
	ActiveRunID string
}

func (e *ConcurrentRunError) Error() string {
	return fmt.Sprintf("run %s is already active for owner %s on %s",
		e.ActiveRunID, e.Owner.Hex(), e.Target.Hex())
}

// RunError is the structured failure attached to a run: which phase failed and why
type RunError struct {
	Phase  Phase            `json:"phase"`
	Kind   ErrorKind        `json:"kind"`
	Reason SubmissionReason `json:"reason,omitempty"`
	// TxHash is the transaction the failing phase was working on, if any
	TxHash  *common.Hash `json:"txHash,omitempty"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// NewRunError builds a RunError for phase, deriving the submission reason from err when present
func NewRunError(phase Phase, kind ErrorKind, err error) *RunError {
	re := &RunError{
		Phase: phase,
		Kind:  kind,
		Err:   err,
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		re.Reason = subErr.Reason
	}
	if err != nil {
		re.Message = err.Error()
	}
	return re
}

// WithTxHash records the transaction involved in the failure
func (e *RunError) WithTxHash(hash common.Hash) *RunError {
	e.TxHash = &hash
	return e
}

func (e *RunError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s failed (%s/%s): %s", e.Phase, e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Phase, e.Kind, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Describe maps a run snapshot to the message a user should see
func Describe(s RunSnapshot) string {
	switch s.Phase {
	case PhaseCompleted:
		if s.IndexingDelayed {
			return "Transaction confirmed. Indexing is delayed, it will show up shortly."
		}
		return "Transaction confirmed."
	case PhaseCancelled:
		if s.ApprovalTxHash != nil {
			return "Cancelled. The approval transaction was already sent."
		}
		return "Cancelled before anything was sent."
	case PhaseErrored:
	default:
		return fmt.Sprintf("In progress (%s).", s.Phase)
	}

	if s.Error == nil {
		return "Transaction failed."
	}

	step := "transaction"
	switch s.Error.Phase {
	case PhaseApprovalNeeded, PhaseApproving, PhaseAwaitingApprovalConfirmation:
		step = "approval"
	}

	switch s.Error.Kind {
	case KindReadError:
		if s.Error.Phase == PhaseCheckingAllowance {
			return "Could not verify allowance, retry."
		}
		return fmt.Sprintf("Could not read the %s status, check your wallet or explorer.", step)
	case KindSubmissionError:
		if s.Error.Reason == UserRejected {
			return fmt.Sprintf("You rejected the %s request.", step)
		}
		return fmt.Sprintf("The %s could not be sent.", step)
	case KindRevertError:
		return fmt.Sprintf("The %s failed on-chain.", step)
	case KindTimeoutError:
		return fmt.Sprintf("The %s is still pending, check your wallet or explorer.", step)
	}
	return fmt.Sprintf("Unexpected error during %s.", s.Error.Phase)
}
