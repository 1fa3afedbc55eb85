package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LaunchpoolABI is the ABI of the staking pool contract
const LaunchpoolABI = `[
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"stake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"unstake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"claimReward","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"stakedBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Launchpool is a Go binding around a staking pool contract.
type Launchpool struct {
	contract *bind.BoundContract
}

// NewLaunchpool creates a new instance of Launchpool, bound to a specific deployed contract.
func NewLaunchpool(address common.Address, backend bind.ContractBackend) (*Launchpool, error) {
	contract, err := bindContract(LaunchpoolABI, address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &Launchpool{contract: contract}, nil
}

// Stake is a paid mutator transaction binding the contract method 0xa694fc3a.
//
// Solidity: function stake(uint256 amount) returns()
func (_Launchpool *Launchpool) Stake(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return _Launchpool.contract.Transact(opts, "stake", amount)
}

// Unstake is a paid mutator transaction binding the contract method 0x2e17de78.
//
// Solidity: function unstake(uint256 amount) returns()
func (_Launchpool *Launchpool) Unstake(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return _Launchpool.contract.Transact(opts, "unstake", amount)
}

// ClaimReward is a paid mutator transaction binding the contract method 0xb88a802f.
//
// Solidity: function claimReward() returns()
func (_Launchpool *Launchpool) ClaimReward(opts *bind.TransactOpts) (*types.Transaction, error) {
	return _Launchpool.contract.Transact(opts, "claimReward")
}

// StakedBalance is a free data retrieval call binding the contract method stakedBalance(address).
//
// Solidity: function stakedBalance(address account) view returns(uint256)
func (_Launchpool *Launchpool) StakedBalance(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := _Launchpool.contract.Call(opts, &out, "stakedBalance", account); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
