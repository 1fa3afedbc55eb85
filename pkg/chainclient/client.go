package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/launchpad-hq/txflow/pkg/contracts"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
)

const (
	// DefaultGasMultiplier adds a 10% buffer to the suggested gas price
	DefaultGasMultiplier = 1.1

	// DefaultReceiptPollInterval is the delay between receipt lookups
	DefaultReceiptPollInterval = 2 * time.Second

	// maxReceiptErrors is how many consecutive receipt lookup failures end a wait
	maxReceiptErrors = 5

	gasPriceTimeout = 10 * time.Second
)

// Backend is the chain access the client needs; *ethclient.Client and the simulated backend satisfy it
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config holds the settings of a chain client
type Config struct {
	RPCURL              string
	PrivateKey          string
	GasMultiplier       float64
	MaxGasPrice         *big.Int
	ReceiptPollInterval time.Duration
}

// Client signs and sends launchpool transactions for a single account
type Client struct {
	backend             Backend
	chainID             *big.Int
	auth                *bind.TransactOpts
	nonces              *NonceManager
	gasMultiplier       float64
	maxGasPrice         *big.Int
	receiptPollInterval time.Duration
	logger              logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSigner replaces the keyed signer, e.g. with a remote wallet that may decline to sign
func WithSigner(signer bind.SignerFn) Option {
	return func(c *Client) {
		c.auth.Signer = signer
	}
}

// WithNonceManager shares a nonce manager between clients of the same account
func WithNonceManager(nm *NonceManager) Option {
	return func(c *Client) {
		c.nonces = nm
	}
}

// Dial connects to the RPC endpoint and builds a client signing with the configured private key
func Dial(ctx context.Context, cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}

	client, err := New(ctx, ec, cfg, log, opts...)
	if err != nil {
		ec.Close()
		return nil, err
	}
	return client, nil
}

// New creates a client over an existing backend
func New(ctx context.Context, backend Backend, cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	if cfg.GasMultiplier <= 0 {
		cfg.GasMultiplier = DefaultGasMultiplier
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = DefaultReceiptPollInterval
	}

	c := &Client{
		backend:             backend,
		chainID:             chainID,
		auth:                auth,
		gasMultiplier:       cfg.GasMultiplier,
		maxGasPrice:         cfg.MaxGasPrice,
		receiptPollInterval: cfg.ReceiptPollInterval,
		logger:              log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.nonces == nil {
		c.nonces = NewNonceManager(log)
	}
	return c, nil
}

// Account returns the address transactions are sent from
func (c *Client) Account() common.Address {
	return c.auth.From
}

// ChainID returns the chain the client is connected to
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping checks the RPC endpoint is reachable
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.backend.BlockNumber(ctx)
	return err
}

// GasPrice returns the suggested gas price with the multiplier applied, capped at the max gas price
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, gasPriceTimeout)
	defer cancel()

	suggested, err := c.backend.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	// Apply gas multiplier (e.g. 1.1 = 10% buffer)
	multiplied := new(big.Float).Mul(
		new(big.Float).SetInt(suggested),
		big.NewFloat(c.gasMultiplier),
	)
	gasPrice := new(big.Int)
	multiplied.Int(gasPrice)

	if c.maxGasPrice != nil && c.maxGasPrice.Sign() > 0 && gasPrice.Cmp(c.maxGasPrice) > 0 {
		c.logger.Notice("Gas price %s wei above max %s wei, capping", gasPrice, c.maxGasPrice)
		gasPrice = new(big.Int).Set(c.maxGasPrice)
	}

	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(gasPrice), big.NewFloat(1e9)).Float64()
	metrics.GasPrice.Set(gwei)
	return gasPrice, nil
}

// ReadAllowance returns how much of token spender may move on behalf of owner
func (c *Client) ReadAllowance(ctx context.Context, owner, token, spender common.Address) (*big.Int, error) {
	erc20, err := contracts.NewERC20(token, c.backend)
	if err != nil {
		return nil, &models.ReadError{Op: "allowance", Err: err}
	}

	allowance, err := erc20.Allowance(&bind.CallOpts{Context: ctx, From: owner}, owner, spender)
	if err != nil {
		return nil, &models.ReadError{Op: "allowance", Err: err}
	}
	return allowance, nil
}

// SubmitApproval sends approve(spender, amount) on token and returns the transaction hash once broadcast
func (c *Client) SubmitApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	erc20, err := contracts.NewERC20(token, c.backend)
	if err != nil {
		return common.Hash{}, ClassifySubmissionError(err)
	}

	return c.send(ctx, "approve", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return erc20.Approve(opts, spender, amount)
	})
}

// SubmitAction sends the contract call an intent stands for
func (c *Client) SubmitAction(ctx context.Context, intent models.TransactionIntent) (common.Hash, error) {
	switch intent.Kind {
	case models.KindApprove:
		if intent.Token == nil {
			return common.Hash{}, ClassifySubmissionError(fmt.Errorf("%w: approve without token", models.ErrInvalidIntent))
		}
		return c.SubmitApproval(ctx, *intent.Token, intent.Target, intent.Amount)

	case models.KindStake, models.KindUnstake, models.KindClaimReward:
		pool, err := contracts.NewLaunchpool(intent.Target, c.backend)
		if err != nil {
			return common.Hash{}, ClassifySubmissionError(err)
		}
		switch intent.Kind {
		case models.KindStake:
			return c.send(ctx, "stake", func(opts *bind.TransactOpts) (*types.Transaction, error) {
				return pool.Stake(opts, intent.Amount)
			})
		case models.KindUnstake:
			return c.send(ctx, "unstake", func(opts *bind.TransactOpts) (*types.Transaction, error) {
				return pool.Unstake(opts, intent.Amount)
			})
		default:
			return c.send(ctx, "claimReward", pool.ClaimReward)
		}

	case models.KindCreatePool:
		if intent.Token == nil {
			return common.Hash{}, ClassifySubmissionError(fmt.Errorf("%w: create pool without reward token", models.ErrInvalidIntent))
		}
		factory, err := contracts.NewLaunchpoolFactory(intent.Target, c.backend)
		if err != nil {
			return common.Hash{}, ClassifySubmissionError(err)
		}
		return c.send(ctx, "createPool", func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return factory.CreatePool(opts, *intent.Token, intent.Amount)
		})
	}

	return common.Hash{}, ClassifySubmissionError(fmt.Errorf("%w: unsupported kind %q", models.ErrInvalidIntent, intent.Kind))
}

// send allocates a nonce and gas price, runs transact and keeps the nonce manager in sync with the outcome
func (c *Client) send(ctx context.Context, method string, transact func(*bind.TransactOpts) (*types.Transaction, error)) (common.Hash, error) {
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		metrics.Submissions.WithLabelValues(method, "failed").Inc()
		return common.Hash{}, ClassifySubmissionError(err)
	}

	from := c.auth.From
	nonce, err := c.nonces.Next(ctx, c.backend, from)
	if err != nil {
		metrics.Submissions.WithLabelValues(method, "failed").Inc()
		return common.Hash{}, ClassifySubmissionError(err)
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasPrice = gasPrice

	tx, err := transact(&opts)
	if err != nil {
		c.nonces.Release(from, nonce)
		if strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
			if syncErr := c.nonces.Sync(ctx, c.backend, from); syncErr != nil {
				c.logger.Debug("Nonce resync for %s failed: %v", from.Hex(), syncErr)
			}
		}
		subErr := ClassifySubmissionError(err)
		metrics.Submissions.WithLabelValues(method, string(subErr.Reason)).Inc()
		c.logger.Error("Failed to send %s transaction (nonce %d): %v", method, nonce, err)
		return common.Hash{}, subErr
	}

	c.nonces.Track(from, tx.Hash(), nonce)
	metrics.Submissions.WithLabelValues(method, "sent").Inc()
	c.logger.Info("Sent %s transaction %s (nonce: %d, gas price: %s)", method, tx.Hash().Hex(), nonce, gasPrice)
	return tx.Hash(), nil
}

// AwaitConfirmation polls for the receipt of hash until it is mined or timeout elapses.
// Elapsing the timeout is not an error: the confirmation comes back with status TxTimedOut.
func (c *Client) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (models.Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptPollInterval)
	defer ticker.Stop()

	from := c.auth.From
	nonce, tracked := c.nonces.NonceOf(from, hash)
	failures := 0

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if tracked {
				c.nonces.MarkMined(from, nonce)
			}
			return confirmationFrom(hash, receipt), nil

		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			failures++
			c.logger.Debug("Receipt lookup for %s failed (%d/%d): %v", hash.Hex(), failures, maxReceiptErrors, err)
			if failures >= maxReceiptErrors {
				return models.Confirmation{TxHash: hash}, &models.ReadError{Op: "receipt", Err: err}
			}

		default:
			failures = 0
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return models.Confirmation{TxHash: hash}, ctx.Err()
			}
			if tracked {
				c.nonces.MarkFailed(from, nonce)
			}
			return models.Confirmation{TxHash: hash, Status: models.TxTimedOut}, nil
		case <-ticker.C:
		}
	}
}

func confirmationFrom(hash common.Hash, receipt *types.Receipt) models.Confirmation {
	conf := models.Confirmation{
		TxHash:  hash,
		Status:  models.TxConfirmed,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		conf.Status = models.TxReverted
	}
	if receipt.BlockNumber != nil {
		conf.BlockNumber = receipt.BlockNumber.Uint64()
	}
	metrics.GasUsed.Observe(float64(receipt.GasUsed))
	return conf
}
