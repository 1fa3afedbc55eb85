package orchestrator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/models"
)

// Wallet is the signing and chain-reading capability a run drives.
// Read failures are *models.ReadError, submission failures *models.SubmissionError.
type Wallet interface {
	Account() common.Address
	ReadAllowance(ctx context.Context, owner, token, spender common.Address) (*big.Int, error)
	SubmitApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	SubmitAction(ctx context.Context, intent models.TransactionIntent) (common.Hash, error)
	// AwaitConfirmation reports TxTimedOut in the confirmation rather than as an error
	AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (models.Confirmation, error)
}

// IndexQuerier asks the off-chain read model whether a transaction has been indexed
type IndexQuerier interface {
	QueryIndexed(ctx context.Context, hash common.Hash) (models.IndexStatus, error)
}
