package chainclient

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpad-hq/txflow/pkg/logger"
)

type fakeNoncer struct {
	nonce uint64
	err   error
	calls int
}

func (f *fakeNoncer) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.calls++
	return f.nonce, f.err
}

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestNonceManager_Sequential(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})
	source := &fakeNoncer{nonce: 7}
	ctx := context.Background()

	for want := uint64(7); want < 10; want++ {
		got, err := nm.Next(ctx, source, testAccount)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, source.calls, "chain is only queried on first allocation")
}

func TestNonceManager_ReleaseLast(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})
	source := &fakeNoncer{nonce: 3}
	ctx := context.Background()

	n, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	nm.Release(testAccount, n)

	again, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	assert.Equal(t, n, again)
}

func TestNonceManager_TrackAndMine(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})
	ctx := context.Background()
	hash := common.HexToHash("0x01")

	n, err := nm.Next(ctx, &fakeNoncer{}, testAccount)
	require.NoError(t, err)
	nm.Track(testAccount, hash, n)
	assert.Equal(t, 1, nm.PendingCount(testAccount))

	got, ok := nm.NonceOf(testAccount, hash)
	require.True(t, ok)
	assert.Equal(t, n, got)

	assert.True(t, nm.MarkMined(testAccount, n))
	assert.False(t, nm.MarkMined(testAccount, n))
	assert.Equal(t, 0, nm.PendingCount(testAccount))
}

func TestNonceManager_FailedResyncs(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})
	source := &fakeNoncer{nonce: 0}
	ctx := context.Background()

	n, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	nm.Track(testAccount, common.HexToHash("0x02"), n)
	nm.MarkFailed(testAccount, n)

	// the dropped transaction never reached the pool, chain still reports 0
	again, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), again)
	assert.Equal(t, 2, source.calls)
}

func TestNonceManager_SourceError(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})

	_, err := nm.Next(context.Background(), &fakeNoncer{err: errors.New("rpc down")}, testAccount)
	assert.ErrorContains(t, err, "rpc down")
}

func TestNonceManager_SyncCatchesUp(t *testing.T) {
	nm := NewNonceManager(&logger.EmptyLogger{})
	source := &fakeNoncer{nonce: 1}
	ctx := context.Background()

	n, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	nm.Release(testAccount, n)

	// another signer used the account meanwhile
	source.nonce = 5
	require.NoError(t, nm.Sync(ctx, source, testAccount))

	got, err := nm.Next(ctx, source, testAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)
}
