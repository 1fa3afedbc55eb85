package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/launchpad-hq/txflow/pkg/models"
)

// Run is one execution of an intent through the state machine.
// Only the run's own goroutine changes its state; everyone else reads snapshots.
type Run struct {
	id string

	mu              sync.Mutex
	snap            models.RunSnapshot
	cancelRequested bool
	cancelPre       context.CancelFunc

	subMu       sync.Mutex
	subscribers map[int]func(models.RunSnapshot)
	nextSub     int

	done chan struct{}
}

func newRun(id string, intent models.TransactionIntent, cancelPre context.CancelFunc, startedAt time.Time) *Run {
	return &Run{
		id: id,
		snap: models.RunSnapshot{
			ID:        id,
			Intent:    intent,
			Phase:     models.PhaseIdle,
			History:   []models.Phase{models.PhaseIdle},
			StartedAt: startedAt,
			UpdatedAt: startedAt,
		},
		cancelPre:   cancelPre,
		subscribers: make(map[int]func(models.RunSnapshot)),
		done:        make(chan struct{}),
	}
}

// ID returns the run identifier
func (r *Run) ID() string {
	return r.id
}

// Snapshot returns a copy of the run's current state
func (r *Run) Snapshot() models.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySnapshot(r.snap)
}

// Phase returns the run's current phase
func (r *Run) Phase() models.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Phase
}

// Subscribe registers fn for every transition from now on and returns a func that removes it.
// Callbacks run on the run's goroutine, in transition order.
func (r *Run) Subscribe(fn func(models.RunSnapshot)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subscribers, id)
			r.subMu.Unlock()
		})
	}
}

// Done is closed once the run reaches a terminal phase
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is terminal or ctx ends, and returns the latest snapshot
func (r *Run) Wait(ctx context.Context) (models.RunSnapshot, error) {
	select {
	case <-r.done:
		return r.Snapshot(), nil
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

func (r *Run) subscriberList() []func(models.RunSnapshot) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ids := make([]int, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fns := make([]func(models.RunSnapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subscribers[id])
	}
	return fns
}

// requestCancel flags the run as cancelled if it has not broadcast its action yet
func (r *Run) requestCancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.snap.Phase.IsCancellable() {
		return ErrNotCancellable
	}
	r.cancelRequested = true
	r.cancelPre()
	return nil
}

func (r *Run) setIndexerAttempts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.IndexerAttempts = n
}

func copySnapshot(s models.RunSnapshot) models.RunSnapshot {
	out := s
	out.Intent = s.Intent.Normalize()
	out.History = append([]models.Phase(nil), s.History...)
	if s.ApprovalTxHash != nil {
		h := *s.ApprovalTxHash
		out.ApprovalTxHash = &h
	}
	if s.ActionTxHash != nil {
		h := *s.ActionTxHash
		out.ActionTxHash = &h
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
