package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
)

// indexPoller queries the indexer with a fixed interval until the record shows up or the attempts run out
type indexPoller struct {
	querier     IndexQuerier
	interval    time.Duration
	maxAttempts int
	logger      logger.Logger
}

// poll returns models.ErrIndexerTimeout once every attempt came back unindexed or failed.
// onAttempt is called after each query with the number of attempts made so far.
func (p *indexPoller) poll(ctx context.Context, runID string, hash common.Hash, onAttempt func(int)) (models.IndexStatus, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.querier.QueryIndexed(ctx, hash)
		onAttempt(attempt)

		switch {
		case err != nil:
			p.logger.DebugWithRun(runID, "Indexer query %d/%d failed: %v", attempt, p.maxAttempts, err)
		case status.Indexed:
			metrics.IndexerAttempts.Observe(float64(attempt))
			return status, nil
		default:
			p.logger.DebugWithRun(runID, "Transaction %s not indexed yet (%d/%d)", hash.Hex(), attempt, p.maxAttempts)
		}

		if attempt == p.maxAttempts {
			break
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.IndexStatus{}, fmt.Errorf("%w: %v", models.ErrIndexerTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	metrics.IndexerAttempts.Observe(float64(p.maxAttempts))
	return models.IndexStatus{}, fmt.Errorf("%w after %d attempts", models.ErrIndexerTimeout, p.maxAttempts)
}
