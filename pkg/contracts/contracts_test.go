package contracts

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABIs_Selectors(t *testing.T) {
	tests := []struct {
		name     string
		abiJSON  string
		method   string
		selector string
	}{
		{"erc20 allowance", ERC20ABI, "allowance", "dd62ed3e"},
		{"erc20 approve", ERC20ABI, "approve", "095ea7b3"},
		{"erc20 balanceOf", ERC20ABI, "balanceOf", "70a08231"},
		{"erc20 decimals", ERC20ABI, "decimals", "313ce567"},
		{"erc20 symbol", ERC20ABI, "symbol", "95d89b41"},
		{"pool stake", LaunchpoolABI, "stake", "a694fc3a"},
		{"pool unstake", LaunchpoolABI, "unstake", "2e17de78"},
		{"pool claimReward", LaunchpoolABI, "claimReward", "b88a802f"},
		{"pool stakedBalance", LaunchpoolABI, "stakedBalance", hex.EncodeToString(crypto.Keccak256([]byte("stakedBalance(address)"))[:4])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := abi.JSON(strings.NewReader(tt.abiJSON))
			require.NoError(t, err)

			method, ok := parsed.Methods[tt.method]
			require.True(t, ok)
			assert.Equal(t, tt.selector, hex.EncodeToString(method.ID))
		})
	}
}

func TestFactoryABI(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(LaunchpoolFactoryABI))
	require.NoError(t, err)

	method, ok := parsed.Methods["createPool"]
	require.True(t, ok)
	assert.Equal(t, "createPool(address,uint256)", method.Sig)
	assert.Contains(t, parsed.Events, "PoolCreated")
}
