package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IntentKind is the user action a TransactionIntent performs
type IntentKind string

const (
	KindApprove     IntentKind = "Approve"
	KindStake       IntentKind = "Stake"
	KindUnstake     IntentKind = "Unstake"
	KindClaimReward IntentKind = "ClaimReward"
	KindCreatePool  IntentKind = "CreatePool"
)

var intentKindAliases = map[string]IntentKind{
	"approve":      KindApprove,
	"stake":        KindStake,
	"unstake":      KindUnstake,
	"claim":        KindClaimReward,
	"claimreward":  KindClaimReward,
	"claim-reward": KindClaimReward,
	"createpool":   KindCreatePool,
	"create-pool":  KindCreatePool,
}

// ParseIntentKind maps a user supplied name (CLI flag, JSON) to an IntentKind
func ParseIntentKind(s string) (IntentKind, error) {
	kind, ok := intentKindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown intent kind %q", ErrInvalidIntent, s)
	}
	return kind, nil
}

// TransactionIntent describes one action the user wants to perform
type TransactionIntent struct {
	Kind IntentKind `json:"kind"`
	// Owner is the account acting. Left zero, the orchestrator fills it from the wallet.
	Owner  common.Address `json:"owner"`
	Target common.Address `json:"target"`
	// Token is the ERC20 involved, nil when the action moves no token
	Token             *common.Address `json:"token,omitempty"`
	Amount            *big.Int        `json:"amount,omitempty"`
	RequiredAllowance *big.Int        `json:"requiredAllowance,omitempty"`
}

// NewStakeIntent stakes amount of token into the pool at target, requiring an allowance of amount
func NewStakeIntent(pool, token common.Address, amount *big.Int) TransactionIntent {
	return TransactionIntent{
		Kind:              KindStake,
		Target:            pool,
		Token:             &token,
		Amount:            amount,
		RequiredAllowance: amount,
	}
}

// NewUnstakeIntent withdraws amount from the pool at target. No allowance is involved.
func NewUnstakeIntent(pool common.Address, amount *big.Int) TransactionIntent {
	return TransactionIntent{
		Kind:   KindUnstake,
		Target: pool,
		Amount: amount,
	}
}

// NewClaimIntent claims the pending rewards of the pool at target
func NewClaimIntent(pool common.Address) TransactionIntent {
	return TransactionIntent{
		Kind:   KindClaimReward,
		Target: pool,
	}
}

// NewCreatePoolIntent creates a pool through the factory at target, depositing amount of the reward token
func NewCreatePoolIntent(factory, rewardToken common.Address, amount *big.Int) TransactionIntent {
	return TransactionIntent{
		Kind:              KindCreatePool,
		Target:            factory,
		Token:             &rewardToken,
		Amount:            amount,
		RequiredAllowance: amount,
	}
}

// NewApproveIntent approves spender to move amount of token
func NewApproveIntent(token, spender common.Address, amount *big.Int) TransactionIntent {
	return TransactionIntent{
		Kind:   KindApprove,
		Target: spender,
		Token:  &token,
		Amount: amount,
	}
}

// Normalize returns a copy with the kind-specific allowance rules applied:
// claims and approvals never require a prior approval.
func (i TransactionIntent) Normalize() TransactionIntent {
	out := i
	if out.Kind == KindClaimReward || out.Kind == KindApprove {
		out.RequiredAllowance = nil
	}
	if out.Amount != nil {
		out.Amount = new(big.Int).Set(out.Amount)
	}
	if out.RequiredAllowance != nil {
		out.RequiredAllowance = new(big.Int).Set(out.RequiredAllowance)
	}
	if out.Token != nil {
		token := *out.Token
		out.Token = &token
	}
	return out
}

// NeedsAllowance reports whether an allowance check applies to the intent
func (i TransactionIntent) NeedsAllowance() bool {
	return i.RequiredAllowance != nil && i.RequiredAllowance.Sign() > 0
}

// Validate checks the intent invariants
func (i TransactionIntent) Validate() error {
	switch i.Kind {
	case KindApprove, KindStake, KindUnstake, KindClaimReward, KindCreatePool:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, i.Kind)
	}

	if i.Target == (common.Address{}) {
		return fmt.Errorf("%w: target address is required", ErrInvalidIntent)
	}

	if i.Kind != KindClaimReward && (i.Amount == nil || i.Amount.Sign() <= 0) {
		return fmt.Errorf("%w: amount must be greater than 0 for %s", ErrInvalidIntent, i.Kind)
	}

	if i.RequiredAllowance != nil && i.RequiredAllowance.Sign() < 0 {
		return fmt.Errorf("%w: required allowance must not be negative", ErrInvalidIntent)
	}

	if i.Kind == KindClaimReward && i.NeedsAllowance() {
		return fmt.Errorf("%w: %s does not take an allowance", ErrInvalidIntent, i.Kind)
	}

	needsToken := i.NeedsAllowance() || i.Kind == KindApprove || i.Kind == KindCreatePool
	if needsToken && (i.Token == nil || *i.Token == (common.Address{})) {
		return fmt.Errorf("%w: token address is required for %s", ErrInvalidIntent, i.Kind)
	}

	return nil
}
