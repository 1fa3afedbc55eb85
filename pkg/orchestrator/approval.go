package orchestrator

import (
	"fmt"
	"math/big"
	"strings"
)

// ApprovalStrategy decides how much allowance an approval grants
type ApprovalStrategy string

const (
	// ApprovalExact approves exactly the required allowance
	ApprovalExact ApprovalStrategy = "exact"
	// ApprovalUnlimited approves MaxUint256 so later actions skip approving
	ApprovalUnlimited ApprovalStrategy = "unlimited"
	// ApprovalOptimized approves exactly when the shortfall is a small top-up of the current allowance,
	// MaxUint256 otherwise
	ApprovalOptimized ApprovalStrategy = "optimized"
)

// MaxUint256 represents the maximum possible uint256 value (2^256 - 1)
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// a shortfall above topUpPercent of the current allowance gets an unlimited approval
const topUpPercent = 30

// ParseApprovalStrategy converts a configuration value to an ApprovalStrategy
func ParseApprovalStrategy(s string) (ApprovalStrategy, error) {
	switch strategy := ApprovalStrategy(strings.ToLower(strings.TrimSpace(s))); strategy {
	case "":
		return ApprovalExact, nil
	case ApprovalExact, ApprovalUnlimited, ApprovalOptimized:
		return strategy, nil
	}
	return "", fmt.Errorf("unknown approval strategy %q", s)
}

// Amount returns the allowance to approve given what is required and what is currently granted
func (s ApprovalStrategy) Amount(required, current *big.Int) *big.Int {
	switch s {
	case ApprovalUnlimited:
		return new(big.Int).Set(MaxUint256)
	case ApprovalOptimized:
		// If allowance is zero, always use infinite approval
		if current == nil || current.Sign() == 0 {
			return new(big.Int).Set(MaxUint256)
		}

		shortfall := new(big.Int).Sub(required, current)
		if shortfall.Sign() <= 0 {
			break
		}

		// shortfall*100 > current*topUpPercent
		lhs := new(big.Int).Mul(shortfall, big.NewInt(100))
		rhs := new(big.Int).Mul(current, big.NewInt(topUpPercent))
		if lhs.Cmp(rhs) > 0 {
			return new(big.Int).Set(MaxUint256)
		}
	}
	return new(big.Int).Set(required)
}
