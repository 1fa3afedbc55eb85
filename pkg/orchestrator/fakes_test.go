package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/launchpad-hq/txflow/pkg/models"
)

var (
	testOwner = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testPool  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testToken = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

// fakeWallet is a scripted Wallet. Approvals that confirm raise the allowance like the chain would.
type fakeWallet struct {
	mu sync.Mutex

	allowance    *big.Int
	allowanceErr error
	approvalErr  error
	actionErr    error
	// statuses returned by AwaitConfirmation
	approvalStatus models.ConfirmationStatus
	actionStatus   models.ConfirmationStatus
	confirmErr     error
	panicOnAction  bool

	// gates block the matching call until closed or the call's context ends
	readGate        chan struct{}
	approvalConfirm chan struct{}
	actionConfirm   chan struct{}

	reads     int
	approvals []*big.Int
	actions   []models.TransactionIntent
	pending   map[common.Hash]*big.Int
	txCount   int
}

func newFakeWallet(allowance int64) *fakeWallet {
	return &fakeWallet{
		allowance: big.NewInt(allowance),
		pending:   make(map[common.Hash]*big.Int),
	}
}

func (w *fakeWallet) Account() common.Address {
	return testOwner
}

func (w *fakeWallet) ReadAllowance(ctx context.Context, _, _, _ common.Address) (*big.Int, error) {
	w.mu.Lock()
	w.reads++
	gate := w.readGate
	w.mu.Unlock()

	if err := waitGate(ctx, gate); err != nil {
		return nil, &models.ReadError{Op: "allowance", Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.allowanceErr != nil {
		return nil, w.allowanceErr
	}
	return new(big.Int).Set(w.allowance), nil
}

func (w *fakeWallet) SubmitApproval(_ context.Context, _, _ common.Address, amount *big.Int) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.approvalErr != nil {
		return common.Hash{}, w.approvalErr
	}
	w.txCount++
	hash := common.HexToHash(fmt.Sprintf("0xa%d", w.txCount))
	w.approvals = append(w.approvals, new(big.Int).Set(amount))
	w.pending[hash] = new(big.Int).Set(amount)
	return hash, nil
}

func (w *fakeWallet) SubmitAction(_ context.Context, intent models.TransactionIntent) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.panicOnAction {
		panic("wallet exploded")
	}
	if w.actionErr != nil {
		return common.Hash{}, w.actionErr
	}
	w.txCount++
	w.actions = append(w.actions, intent)
	return common.HexToHash(fmt.Sprintf("0xb%d", w.txCount)), nil
}

func (w *fakeWallet) AwaitConfirmation(ctx context.Context, hash common.Hash, _ time.Duration) (models.Confirmation, error) {
	w.mu.Lock()
	approvedAmount, isApproval := w.pending[hash]
	gate := w.actionConfirm
	if isApproval {
		gate = w.approvalConfirm
	}
	w.mu.Unlock()

	if err := waitGate(ctx, gate); err != nil {
		return models.Confirmation{TxHash: hash}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.confirmErr != nil {
		return models.Confirmation{TxHash: hash}, w.confirmErr
	}

	status := w.actionStatus
	if isApproval {
		status = w.approvalStatus
		delete(w.pending, hash)
		if status == models.TxConfirmed {
			w.allowance = approvedAmount
		}
	}
	return models.Confirmation{TxHash: hash, Status: status, BlockNumber: 10, GasUsed: 46_000}, nil
}

func (w *fakeWallet) approvalCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.approvals)
}

func (w *fakeWallet) actionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.actions)
}

func (w *fakeWallet) readCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reads
}

func waitGate(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fakeIndexer reports the transaction indexed on attempt indexedOn; zero means never
type fakeIndexer struct {
	mu        sync.Mutex
	indexedOn int
	err       error
	entityID  string
	calls     int
}

func (f *fakeIndexer) QueryIndexed(_ context.Context, _ common.Hash) (models.IndexStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return models.IndexStatus{}, f.err
	}
	if f.indexedOn > 0 && f.calls >= f.indexedOn {
		return models.IndexStatus{Indexed: true, EntityID: f.entityID}, nil
	}
	return models.IndexStatus{}, nil
}

func (f *fakeIndexer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder collects every snapshot an orchestrator publishes
type recorder struct {
	mu    sync.Mutex
	snaps []models.RunSnapshot
}

func (r *recorder) observe(s models.RunSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) phases(runID string) []models.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Phase
	for _, s := range r.snaps {
		if s.ID == runID {
			out = append(out, s.Phase)
		}
	}
	return out
}

func testPolicy() Policy {
	return Policy{
		ConfirmationTimeout: time.Second,
		IndexerPollInterval: time.Millisecond,
		IndexerMaxAttempts:  20,
		ApprovalStrategy:    ApprovalExact,
	}
}

func newTestOrchestrator(t *testing.T, w *fakeWallet, idx *fakeIndexer, opts ...Option) (*Orchestrator, *recorder) {
	t.Helper()
	o := New(w, idx, append([]Option{WithPolicy(testPolicy())}, opts...)...)
	rec := &recorder{}
	o.OnPhaseChange(rec.observe)
	return o, rec
}

func waitRun(t *testing.T, run *Run) models.RunSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := run.Wait(ctx)
	require.NoError(t, err, "run %s stuck in %s", run.ID(), snap.Phase)
	return snap
}

func waitPhase(t *testing.T, run *Run, phase models.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return run.Phase() == phase
	}, 5*time.Second, time.Millisecond, "run never reached %s", phase)
}

func stakeIntent(amount int64) models.TransactionIntent {
	return models.NewStakeIntent(testPool, testToken, big.NewInt(amount))
}
