package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/models"
)

func TestIndexPoller(t *testing.T) {
	hash := common.HexToHash("0xfeed")

	t.Run("first query is immediate", func(t *testing.T) {
		idx := &fakeIndexer{indexedOn: 1, entityID: "p1"}
		p := &indexPoller{querier: idx, interval: time.Hour, maxAttempts: 3, logger: &logger.EmptyLogger{}}

		var attempts []int
		status, err := p.poll(context.Background(), "run_test", hash, func(n int) { attempts = append(attempts, n) })
		require.NoError(t, err)
		assert.Equal(t, "p1", status.EntityID)
		assert.Equal(t, []int{1}, attempts)
	})

	t.Run("exhausted", func(t *testing.T) {
		idx := &fakeIndexer{}
		p := &indexPoller{querier: idx, interval: time.Millisecond, maxAttempts: 4, logger: &logger.EmptyLogger{}}

		last := 0
		_, err := p.poll(context.Background(), "run_test", hash, func(n int) { last = n })
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrIndexerTimeout))
		assert.Equal(t, 4, last)
		assert.Equal(t, 4, idx.callCount())
	})

	t.Run("context cancelled between attempts", func(t *testing.T) {
		idx := &fakeIndexer{}
		p := &indexPoller{querier: idx, interval: time.Hour, maxAttempts: 5, logger: &logger.EmptyLogger{}}

		ctx, cancel := context.WithCancel(context.Background())
		_, err := p.poll(ctx, "run_test", hash, func(int) { cancel() })
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrIndexerTimeout))
		assert.Equal(t, 1, idx.callCount())
	})
}
