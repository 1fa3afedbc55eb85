package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/launchpad-hq/txflow/pkg/models"
)

// intentFlags are the flags shared by every action command
type intentFlags struct {
	target            string
	token             string
	amount            string
	requiredAllowance string
	serve             bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "txflow",
		Short: "Run launchpool transactions from allowance check to indexed result",
		Long: `txflow drives a launchpool action through its whole lifecycle:
it checks the token allowance, approves when needed, submits the action,
waits for it to be mined and polls the indexer until the result shows up.

Configuration is read from the environment (and a .env file when present).
PRIVATE_KEY is required; NETWORK, RPC_URL and INDEXER_ENDPOINT select where to run.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newIntentCmd("stake", "Stake tokens into a launchpool", buildStake),
		newIntentCmd("unstake", "Withdraw staked tokens from a launchpool", buildUnstake),
		newIntentCmd("claim", "Claim the pending rewards of a launchpool", buildClaim),
		newIntentCmd("create-pool", "Create a launchpool through the factory, funding its rewards", buildCreatePool),
		newIntentCmd("approve", "Approve a spender to move tokens", buildApprove),
	)
	return root
}

func newIntentCmd(use, short string, build func(*intentFlags) (models.TransactionIntent, error)) *cobra.Command {
	flags := &intentFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			intent, err := build(flags)
			if err != nil {
				return err
			}
			return runIntent(cmd.Context(), cmd.OutOrStdout(), intent, flags.serve)
		},
	}

	cmd.Flags().StringVar(&flags.target, "target", "", "contract the action is sent to (pool, factory or spender)")
	cmd.Flags().StringVar(&flags.token, "token", "", "ERC20 token involved in the action")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "token amount in base units")
	cmd.Flags().StringVar(&flags.requiredAllowance, "required-allowance", "", "allowance the action needs, defaults to the amount")
	cmd.Flags().BoolVar(&flags.serve, "serve", false, "serve health, run status and metrics while the run is in progress")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func buildStake(f *intentFlags) (models.TransactionIntent, error) {
	target, token, amount, err := f.targetTokenAmount()
	if err != nil {
		return models.TransactionIntent{}, err
	}
	return f.withRequiredAllowance(models.NewStakeIntent(target, token, amount))
}

func buildUnstake(f *intentFlags) (models.TransactionIntent, error) {
	target, err := parseAddress("target", f.target)
	if err != nil {
		return models.TransactionIntent{}, err
	}
	amount, err := parseAmount("amount", f.amount)
	if err != nil {
		return models.TransactionIntent{}, err
	}
	return models.NewUnstakeIntent(target, amount), nil
}

func buildClaim(f *intentFlags) (models.TransactionIntent, error) {
	target, err := parseAddress("target", f.target)
	if err != nil {
		return models.TransactionIntent{}, err
	}
	return models.NewClaimIntent(target), nil
}

func buildCreatePool(f *intentFlags) (models.TransactionIntent, error) {
	target, token, amount, err := f.targetTokenAmount()
	if err != nil {
		return models.TransactionIntent{}, err
	}
	return f.withRequiredAllowance(models.NewCreatePoolIntent(target, token, amount))
}

func buildApprove(f *intentFlags) (models.TransactionIntent, error) {
	target, token, amount, err := f.targetTokenAmount()
	if err != nil {
		return models.TransactionIntent{}, err
	}
	return models.NewApproveIntent(token, target, amount), nil
}

func (f *intentFlags) targetTokenAmount() (common.Address, common.Address, *big.Int, error) {
	target, err := parseAddress("target", f.target)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	token, err := parseAddress("token", f.token)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", f.amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return target, token, amount, nil
}

func (f *intentFlags) withRequiredAllowance(intent models.TransactionIntent) (models.TransactionIntent, error) {
	if f.requiredAllowance == "" {
		return intent, nil
	}
	required, ok := new(big.Int).SetString(strings.TrimSpace(f.requiredAllowance), 10)
	if !ok || required.Sign() < 0 {
		return models.TransactionIntent{}, fmt.Errorf("invalid --required-allowance %q", f.requiredAllowance)
	}
	intent.RequiredAllowance = required
	return intent, nil
}

func parseAddress(flag, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("--%s is required", flag)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", flag, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(flag, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid --%s %q, must be a positive integer in base units", flag, value)
	}
	return amount, nil
}
