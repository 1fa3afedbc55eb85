package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
)

// execute runs the phases of r in order. Everything before Submitting runs on preCtx,
// which Cancel aborts; everything after the broadcast runs on ctx.
func (o *Orchestrator) execute(ctx, preCtx context.Context, r *Run) {
	defer func() {
		if rec := recover(); rec != nil {
			o.fail(r, models.KindInternalError, fmt.Errorf("panic: %v", rec), nil)
		}
	}()

	intent := r.Snapshot().Intent

	if !o.transition(r, models.PhaseCheckingAllowance, nil) {
		return
	}
	needsApproval, current, err := o.checkAllowance(preCtx, intent)
	if err != nil {
		o.fail(r, models.KindReadError, err, nil)
		return
	}

	if needsApproval {
		if !o.approve(preCtx, r, intent, current) {
			return
		}
	} else if intent.NeedsAllowance() {
		metrics.ApprovalsSkipped.Inc()
		o.logger.DebugWithRun(r.id, "Allowance %s covers %s, skipping approval", current, intent.RequiredAllowance)
	}

	if !o.transition(r, models.PhaseSubmitting, nil) {
		return
	}
	actionHash, err := o.wallet.SubmitAction(ctx, intent)
	if err != nil {
		o.fail(r, models.KindSubmissionError, err, nil)
		return
	}
	if !o.transition(r, models.PhaseAwaitingActionConfirmation, func(s *models.RunSnapshot) {
		s.ActionTxHash = &actionHash
	}) {
		return
	}
	if !o.confirm(ctx, r, actionHash, "action") {
		return
	}

	if !o.transition(r, models.PhasePollingIndexer, nil) {
		return
	}
	o.pollIndexer(ctx, r, actionHash)
}

// checkAllowance reports whether an approval is needed, along with the allowance that was read.
// Intents without an allowance requirement never touch the chain.
func (o *Orchestrator) checkAllowance(ctx context.Context, intent models.TransactionIntent) (bool, *big.Int, error) {
	if !intent.NeedsAllowance() || intent.Token == nil {
		return false, nil, nil
	}

	current, err := o.wallet.ReadAllowance(ctx, intent.Owner, *intent.Token, intent.Target)
	if err != nil {
		var readErr *models.ReadError
		if !errors.As(err, &readErr) {
			err = &models.ReadError{Op: "allowance", Err: err}
		}
		return false, nil, err
	}
	if current == nil {
		current = new(big.Int)
	}
	return current.Cmp(intent.RequiredAllowance) < 0, current, nil
}

// approve walks ApprovalNeeded, Approving and AwaitingApprovalConfirmation
func (o *Orchestrator) approve(ctx context.Context, r *Run, intent models.TransactionIntent, current *big.Int) bool {
	if !o.transition(r, models.PhaseApprovalNeeded, nil) {
		return false
	}
	if !o.transition(r, models.PhaseApproving, nil) {
		return false
	}

	amount := o.policy.ApprovalStrategy.Amount(intent.RequiredAllowance, current)
	o.logger.DebugWithRun(r.id, "Approving %s of %s for %s (current allowance %s)",
		amount, intent.Token.Hex(), intent.Target.Hex(), current)

	hash, err := o.wallet.SubmitApproval(ctx, *intent.Token, intent.Target, amount)
	if err != nil {
		o.fail(r, models.KindSubmissionError, err, nil)
		return false
	}
	if !o.transition(r, models.PhaseAwaitingApprovalConfirmation, func(s *models.RunSnapshot) {
		s.ApprovalTxHash = &hash
	}) {
		return false
	}
	return o.confirm(ctx, r, hash, "approval")
}

// confirm waits for hash and fails the run unless it was mined successfully.
// A timeout is reported as such and never leads to a resubmission.
func (o *Orchestrator) confirm(ctx context.Context, r *Run, hash common.Hash, step string) bool {
	started := time.Now()
	conf, err := o.wallet.AwaitConfirmation(ctx, hash, o.policy.ConfirmationTimeout)
	if err != nil {
		kind := models.KindReadError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = models.KindTimeoutError
		}
		o.fail(r, kind, err, &hash)
		return false
	}
	metrics.ConfirmationWait.WithLabelValues(step, conf.Status.String()).Observe(time.Since(started).Seconds())

	switch conf.Status {
	case models.TxConfirmed:
		o.logger.InfoWithRun(r.id, "%s transaction %s confirmed in block %d (gas used: %d)",
			step, hash.Hex(), conf.BlockNumber, conf.GasUsed)
		return true
	case models.TxReverted:
		o.fail(r, models.KindRevertError, fmt.Errorf("%s transaction %s reverted in block %d", step, hash.Hex(), conf.BlockNumber), &hash)
	default:
		o.fail(r, models.KindTimeoutError, fmt.Errorf("%s transaction %s not mined within %s", step, hash.Hex(), o.policy.ConfirmationTimeout), &hash)
	}
	return false
}

// pollIndexer completes the run. An indexer that never catches up degrades the completion instead of failing it.
func (o *Orchestrator) pollIndexer(ctx context.Context, r *Run, hash common.Hash) {
	poller := &indexPoller{
		querier:     o.indexer,
		interval:    o.policy.IndexerPollInterval,
		maxAttempts: o.policy.IndexerMaxAttempts,
		logger:      o.logger,
	}

	status, err := poller.poll(ctx, r.id, hash, r.setIndexerAttempts)
	if err != nil {
		metrics.IndexingDelayed.Inc()
		o.logger.NoticeWithRun(r.id, "Indexing delayed for %s: %v", hash.Hex(), err)
		o.transition(r, models.PhaseCompleted, func(s *models.RunSnapshot) {
			s.IndexingDelayed = true
			s.Error = models.NewRunError(models.PhasePollingIndexer, models.KindIndexerTimeoutError, err).WithTxHash(hash)
		})
		return
	}

	o.transition(r, models.PhaseCompleted, func(s *models.RunSnapshot) {
		s.IndexedEntityID = status.EntityID
	})
}

// fail ends the run in Errored, recording the phase that failed, or in Cancelled when a
// cancellation caused the failure
func (o *Orchestrator) fail(r *Run, kind models.ErrorKind, err error, txHash *common.Hash) {
	var runErr *models.RunError
	if o.transition(r, models.PhaseErrored, func(s *models.RunSnapshot) {
		runErr = models.NewRunError(s.Phase, kind, err)
		if txHash != nil {
			runErr.WithTxHash(*txHash)
		}
		s.Error = runErr
	}) {
		metrics.RunErrors.WithLabelValues(string(runErr.Phase), string(kind)).Inc()
		o.logger.ErrorWithRun(r.id, "%v", runErr)
	}
}
