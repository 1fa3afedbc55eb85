package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
)

var (
	// ErrRunNotFound is returned for ids that are not an active run
	ErrRunNotFound = errors.New("run not found")
	// ErrNotCancellable is returned when the action transaction may already be on its way
	ErrNotCancellable = errors.New("run can no longer be cancelled")
)

// Policy holds the tunable limits of a run
type Policy struct {
	ConfirmationTimeout time.Duration
	IndexerPollInterval time.Duration
	IndexerMaxAttempts  int
	ApprovalStrategy    ApprovalStrategy
}

// DefaultPolicy returns the default run limits: 5 minute confirmations, 20 indexer queries 3 seconds apart
func DefaultPolicy() Policy {
	return Policy{
		ConfirmationTimeout: 5 * time.Minute,
		IndexerPollInterval: 3 * time.Second,
		IndexerMaxAttempts:  20,
		ApprovalStrategy:    ApprovalExact,
	}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPolicy overrides the default run limits; zero fields keep their default
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		def := DefaultPolicy()
		if p.ConfirmationTimeout <= 0 {
			p.ConfirmationTimeout = def.ConfirmationTimeout
		}
		if p.IndexerPollInterval <= 0 {
			p.IndexerPollInterval = def.IndexerPollInterval
		}
		if p.IndexerMaxAttempts <= 0 {
			p.IndexerMaxAttempts = def.IndexerMaxAttempts
		}
		if p.ApprovalStrategy == "" {
			p.ApprovalStrategy = def.ApprovalStrategy
		}
		o.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

type runKey struct {
	owner  common.Address
	target common.Address
}

// Orchestrator drives intents through allowance check, approval, action, confirmation and indexing
type Orchestrator struct {
	wallet  Wallet
	indexer IndexQuerier
	policy  Policy
	logger  logger.Logger
	now     func() time.Time

	mu        sync.RWMutex
	active    map[runKey]*Run
	byID      map[string]*Run
	observers []func(models.RunSnapshot)
}

// New creates an orchestrator over a wallet and an indexer
func New(wallet Wallet, indexer IndexQuerier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		wallet:  wallet,
		indexer: indexer,
		policy:  DefaultPolicy(),
		logger:  &logger.EmptyLogger{},
		now:     time.Now,
		active:  make(map[runKey]*Run),
		byID:    make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the limits runs are executed with
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// OnPhaseChange registers fn for every transition of every run
func (o *Orchestrator) OnPhaseChange(fn func(models.RunSnapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// Start validates intent and launches a run for it. It fails with *models.ConcurrentRunError
// while another run for the same owner and target is active.
// ctx bounds the whole run; Cancel only stops it before the action is broadcast.
func (o *Orchestrator) Start(ctx context.Context, intent models.TransactionIntent) (*Run, error) {
	intent = intent.Normalize()
	if intent.Owner == (common.Address{}) {
		intent.Owner = o.wallet.Account()
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	key := runKey{owner: intent.Owner, target: intent.Target}
	preCtx, cancelPre := context.WithCancel(ctx)

	o.mu.Lock()
	if existing, ok := o.active[key]; ok {
		o.mu.Unlock()
		cancelPre()
		metrics.ConcurrentRunRejections.Inc()
		return nil, &models.ConcurrentRunError{
			Owner:       intent.Owner,
			Target:      intent.Target,
			ActiveRunID: existing.ID(),
		}
	}
	id := o.newRunID()
	run := newRun(id, intent, cancelPre, o.now())
	o.active[key] = run
	o.byID[id] = run
	o.mu.Unlock()

	metrics.RunsStarted.WithLabelValues(string(intent.Kind)).Inc()
	metrics.ActiveRuns.Inc()
	o.logger.InfoWithRun(id, "Starting %s on %s for %s", intent.Kind, intent.Target.Hex(), intent.Owner.Hex())

	go o.execute(ctx, preCtx, run)
	return run, nil
}

// newRunID must be called with o.mu held
func (o *Orchestrator) newRunID() string {
	for {
		id := "run_" + uuid.New().String()[:8]
		if _, taken := o.byID[id]; !taken {
			return id
		}
	}
}

// Cancel stops an active run that has not broadcast its action transaction yet
func (o *Orchestrator) Cancel(runID string) error {
	run, ok := o.Get(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err := run.requestCancel(); err != nil {
		return err
	}
	o.logger.NoticeWithRun(runID, "Cancellation requested")
	return nil
}

// Get returns an active run by id
func (o *Orchestrator) Get(runID string) (*Run, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	run, ok := o.byID[runID]
	return run, ok
}

// ActiveRuns returns snapshots of every run in progress, oldest first
func (o *Orchestrator) ActiveRuns() []models.RunSnapshot {
	o.mu.RLock()
	runs := make([]*Run, 0, len(o.byID))
	for _, run := range o.byID {
		runs = append(runs, run)
	}
	o.mu.RUnlock()

	snapshots := make([]models.RunSnapshot, 0, len(runs))
	for _, run := range runs {
		snapshots = append(snapshots, run.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].StartedAt.Equal(snapshots[j].StartedAt) {
			return snapshots[i].ID < snapshots[j].ID
		}
		return snapshots[i].StartedAt.Before(snapshots[j].StartedAt)
	})
	return snapshots
}

// transition moves r to phase and notifies observers. A pending cancellation turns any
// transition out of a cancellable phase into Cancelled; the check and the move happen under
// the run lock, so a cancel can never slip past the action broadcast.
// mutate sees the snapshot before the phase changes. It reports whether r landed on phase.
func (o *Orchestrator) transition(r *Run, phase models.Phase, mutate func(*models.RunSnapshot)) bool {
	r.mu.Lock()
	from := r.snap.Phase
	if from.IsTerminal() {
		r.mu.Unlock()
		return false
	}

	to := phase
	if r.cancelRequested && from.IsCancellable() {
		to = models.PhaseCancelled
	}
	if mutate != nil {
		mutate(&r.snap)
	}
	if to == models.PhaseCancelled {
		r.snap.Error = nil
	}
	r.snap.Phase = to
	r.snap.History = append(r.snap.History, to)
	r.snap.UpdatedAt = o.now()
	snap := copySnapshot(r.snap)
	r.mu.Unlock()

	metrics.PhaseTransitions.WithLabelValues(string(to)).Inc()
	o.logger.InfoWithRun(r.id, "phase %s", to)

	if to.IsTerminal() {
		o.finish(r, snap)
	}
	o.notify(r, snap)
	if to.IsTerminal() {
		close(r.done)
	}
	return to == phase
}

// finish removes a terminal run from the registry so the owner and target are free again
func (o *Orchestrator) finish(r *Run, snap models.RunSnapshot) {
	o.mu.Lock()
	key := runKey{owner: snap.Intent.Owner, target: snap.Intent.Target}
	if o.active[key] == r {
		delete(o.active, key)
	}
	delete(o.byID, r.id)
	o.mu.Unlock()

	r.cancelPre()
	metrics.ActiveRuns.Dec()
	metrics.RunsFinished.WithLabelValues(string(snap.Intent.Kind), string(snap.Phase)).Inc()
	metrics.RunDuration.WithLabelValues(string(snap.Intent.Kind)).Observe(snap.UpdatedAt.Sub(snap.StartedAt).Seconds())
}

func (o *Orchestrator) notify(r *Run, snap models.RunSnapshot) {
	o.mu.RLock()
	observers := make([]func(models.RunSnapshot), len(o.observers))
	copy(observers, o.observers)
	o.mu.RUnlock()

	for _, fn := range append(observers, r.subscriberList()...) {
		o.deliver(r.id, fn, snap)
	}
}

// deliver isolates the run from a panicking observer
func (o *Orchestrator) deliver(runID string, fn func(models.RunSnapshot), snap models.RunSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.ErrorWithRun(runID, "Phase observer panicked: %v", rec)
		}
	}()
	fn(copySnapshot(snap))
}
