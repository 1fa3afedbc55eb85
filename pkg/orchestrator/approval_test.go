package orchestrator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalAmount(t *testing.T) {
	tests := []struct {
		name     string
		strategy ApprovalStrategy
		required *big.Int
		current  *big.Int
		expected *big.Int
	}{
		{"exact with zero allowance", ApprovalExact, big.NewInt(100), big.NewInt(0), big.NewInt(100)},
		{"exact with partial allowance", ApprovalExact, big.NewInt(100), big.NewInt(40), big.NewInt(100)},
		{"unlimited", ApprovalUnlimited, big.NewInt(100), big.NewInt(40), MaxUint256},
		{"optimized with zero allowance", ApprovalOptimized, big.NewInt(100), big.NewInt(0), MaxUint256},
		{"optimized with nil allowance", ApprovalOptimized, big.NewInt(100), nil, MaxUint256},
		{"optimized shortfall above 30 percent", ApprovalOptimized, big.NewInt(131), big.NewInt(100), MaxUint256},
		{"optimized shortfall at 30 percent", ApprovalOptimized, big.NewInt(130), big.NewInt(100), big.NewInt(130)},
		{"optimized shortfall below 30 percent", ApprovalOptimized, big.NewInt(110), big.NewInt(100), big.NewInt(110)},
		{"optimized without shortfall", ApprovalOptimized, big.NewInt(50), big.NewInt(100), big.NewInt(50)},
		{"optimized large allowance", ApprovalOptimized, big.NewInt(1_000_001), big.NewInt(1_000_000), big.NewInt(1_000_001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.strategy.Amount(tt.required, tt.current)
			assert.Equal(t, 0, tt.expected.Cmp(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestApprovalAmountDoesNotAlias(t *testing.T) {
	required := big.NewInt(100)
	got := ApprovalExact.Amount(required, big.NewInt(0))
	got.SetInt64(1)
	assert.Equal(t, int64(100), required.Int64())

	unlimited := ApprovalUnlimited.Amount(required, nil)
	unlimited.SetInt64(1)
	assert.Equal(t, 256, MaxUint256.BitLen())
}

func TestParseApprovalStrategy(t *testing.T) {
	tests := []struct {
		in       string
		expected ApprovalStrategy
		wantErr  bool
	}{
		{"", ApprovalExact, false},
		{"exact", ApprovalExact, false},
		{" Unlimited ", ApprovalUnlimited, false},
		{"OPTIMIZED", ApprovalOptimized, false},
		{"infinite", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseApprovalStrategy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
