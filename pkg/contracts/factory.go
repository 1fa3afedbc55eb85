package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LaunchpoolFactoryABI is the ABI of the pool factory contract
const LaunchpoolFactoryABI = `[
	{"inputs":[{"internalType":"address","name":"rewardToken","type":"address"},{"internalType":"uint256","name":"rewardAmount","type":"uint256"}],"name":"createPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"pool","type":"address"},{"indexed":true,"internalType":"address","name":"creator","type":"address"},{"indexed":false,"internalType":"address","name":"rewardToken","type":"address"},{"indexed":false,"internalType":"uint256","name":"rewardAmount","type":"uint256"}],"name":"PoolCreated","type":"event"}
]`

// LaunchpoolFactory is a Go binding around the pool factory contract.
type LaunchpoolFactory struct {
	contract *bind.BoundContract
}

// LaunchpoolFactoryPoolCreated represents a PoolCreated event raised by the factory.
type LaunchpoolFactoryPoolCreated struct {
	Pool         common.Address
	Creator      common.Address
	RewardToken  common.Address
	RewardAmount *big.Int
	Raw          types.Log
}

// NewLaunchpoolFactory creates a new instance of LaunchpoolFactory, bound to a specific deployed contract.
func NewLaunchpoolFactory(address common.Address, backend bind.ContractBackend) (*LaunchpoolFactory, error) {
	contract, err := bindContract(LaunchpoolFactoryABI, address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &LaunchpoolFactory{contract: contract}, nil
}

// CreatePool is a paid mutator transaction binding the contract method createPool(address,uint256).
//
// Solidity: function createPool(address rewardToken, uint256 rewardAmount) returns(address pool)
func (_Factory *LaunchpoolFactory) CreatePool(opts *bind.TransactOpts, rewardToken common.Address, rewardAmount *big.Int) (*types.Transaction, error) {
	return _Factory.contract.Transact(opts, "createPool", rewardToken, rewardAmount)
}

// ParsePoolCreated is a log parse operation binding the contract event PoolCreated.
//
// Solidity: event PoolCreated(address indexed pool, address indexed creator, address rewardToken, uint256 rewardAmount)
func (_Factory *LaunchpoolFactory) ParsePoolCreated(log types.Log) (*LaunchpoolFactoryPoolCreated, error) {
	event := new(LaunchpoolFactoryPoolCreated)
	if err := _Factory.contract.UnpackLog(event, "PoolCreated", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
