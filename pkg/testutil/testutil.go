package testutil

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Constants for testing
const (
	DefaultTestTimeout = 5 * time.Second
)

// RevertingContractCode deploys a contract whose every call reverts
var RevertingContractCode = common.FromHex("0x6005600c60003960056000f360006000fd")

// Simulation is a funded account on a simulated chain
type Simulation struct {
	Backend    *simulated.Backend
	Key        *ecdsa.PrivateKey
	Address    common.Address
	PrivateKey string
}

// SetupSimulation creates a simulated blockchain environment with one funded account
func SetupSimulation(t *testing.T) *Simulation {
	t.Helper()

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err, "Failed to generate private key")
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	// Fund the account with some initial balance
	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	sim := simulated.NewBackend(types.GenesisAlloc{
		address: {Balance: balance},
	})
	t.Cleanup(func() {
		_ = sim.Close()
	})

	return &Simulation{
		Backend:    sim,
		Key:        privateKey,
		Address:    address,
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(privateKey)),
	}
}

// SendRaw signs and sends a legacy transaction from the funded account without mining it
func (s *Simulation) SendRaw(t *testing.T, to *common.Address, value *big.Int, gas uint64, data []byte) *types.Transaction {
	t.Helper()
	ctx := context.Background()
	client := s.Backend.Client()

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	nonce, err := client.PendingNonceAt(ctx, s.Address)
	require.NoError(t, err)
	gasPrice, err := client.SuggestGasPrice(ctx)
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.Key)
	require.NoError(t, err)
	require.NoError(t, client.SendTransaction(ctx, signed))
	return signed
}

// DeployReverting deploys RevertingContractCode and mines it, returning the contract address
func (s *Simulation) DeployReverting(t *testing.T) common.Address {
	t.Helper()
	tx := s.SendRaw(t, nil, big.NewInt(0), 200_000, RevertingContractCode)
	s.Backend.Commit()
	return crypto.CreateAddress(s.Address, tx.Nonce())
}

// GenerateAddress creates a random address for testing
func GenerateAddress() common.Address {
	privateKey, _ := crypto.GenerateKey()
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// AssertBigIntEqual compares two big.Int values for equality in tests
func AssertBigIntEqual(t *testing.T, expected, actual *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	if expected == nil && actual == nil {
		return
	}

	if (expected == nil && actual != nil) || (expected != nil && actual == nil) {
		assert.Fail(t, "Values not equal", msgAndArgs...)
		return
	}

	assert.Equal(t, 0, expected.Cmp(actual), msgAndArgs...)
}

// ContextWithTimeout returns a context bound to DefaultTestTimeout and cancelled at test cleanup
func ContextWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	t.Cleanup(cancel)
	return ctx
}
