package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/contracts"
	"github.com/launchpad-hq/txflow/pkg/metrics"
)

// ErrNoPoolCreated is returned when a receipt carries no PoolCreated event
var ErrNoPoolCreated = errors.New("no PoolCreated event in receipt")

// TokenBalance is an account's balance of an ERC20 token
type TokenBalance struct {
	Token    common.Address
	Symbol   string
	Decimals uint8
	Balance  *big.Int
}

// String renders the balance in whole tokens when decimals are known
func (b TokenBalance) String() string {
	symbol := b.Symbol
	if symbol == "" {
		symbol = b.Token.Hex()
	}
	if b.Decimals == 0 {
		return fmt.Sprintf("%s %s", b.Balance, symbol)
	}
	return fmt.Sprintf("%s %s", b.whole().Text('f', int(b.Decimals)), symbol)
}

func (b TokenBalance) whole() *big.Float {
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(b.Decimals)), nil))
	return new(big.Float).Quo(new(big.Float).SetInt(b.Balance), divisor)
}

// TokenBalance reads owner's balance of token. Symbol and decimals are best effort.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (TokenBalance, error) {
	erc20, err := contracts.NewERC20(token, c.backend)
	if err != nil {
		return TokenBalance{}, fmt.Errorf("failed to create token contract: %w", err)
	}

	opts := &bind.CallOpts{Context: ctx}
	balance, err := erc20.BalanceOf(opts, owner)
	if err != nil {
		return TokenBalance{}, fmt.Errorf("failed to get token balance: %w", err)
	}

	result := TokenBalance{Token: token, Balance: balance}
	if symbol, err := erc20.Symbol(opts); err == nil {
		result.Symbol = symbol
	}
	if decimals, err := erc20.Decimals(opts); err == nil {
		result.Decimals = decimals
	}

	label := result.Symbol
	if label == "" {
		label = token.Hex()
	}
	whole, _ := result.whole().Float64()
	metrics.TokenBalance.WithLabelValues(c.chainID.String(), label).Set(whole)

	return result, nil
}

// StakedBalance reads how much owner has staked in the pool
func (c *Client) StakedBalance(ctx context.Context, pool, owner common.Address) (*big.Int, error) {
	launchpool, err := contracts.NewLaunchpool(pool, c.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool contract: %w", err)
	}

	staked, err := launchpool.StakedBalance(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get staked balance: %w", err)
	}
	return staked, nil
}

// CreatedPool returns the pool address announced by the factory in the receipt of a createPool transaction
func (c *Client) CreatedPool(ctx context.Context, factory common.Address, hash common.Hash) (common.Address, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}

	binding, err := contracts.NewLaunchpoolFactory(factory, c.backend)
	if err != nil {
		return common.Address{}, err
	}

	for _, log := range receipt.Logs {
		if log.Address != factory {
			continue
		}
		event, err := binding.ParsePoolCreated(*log)
		if err != nil {
			continue
		}
		return event.Pool, nil
	}
	return common.Address{}, fmt.Errorf("%w: %s", ErrNoPoolCreated, hash.Hex())
}
