package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is the category of items created without one.
const DefaultCategory = "default"

// Runner is the body of a work item.
//
// Run must poll item.SuspendRequested() and, when it becomes true, save what it
// needs with item.AcknowledgeSuspend and return nil. Cleanup is called exactly
// once after Run returns or panics.
type Runner interface {
	Run(ctx context.Context, item *Item) error
	Cleanup(ok bool, err error)
}

// RunnerFunc adapts a function to a Runner with a no-op Cleanup.
type RunnerFunc func(ctx context.Context, item *Item) error

func (f RunnerFunc) Run(ctx context.Context, item *Item) error { return f(ctx, item) }

func (f RunnerFunc) Cleanup(bool, error) {}

// Item is a unit of deferred work tracked by the engine.
// State transitions are made by the engine only; the runner may update
// progress and acknowledge suspension.
type Item struct {
	id       string
	category string
	priority string
	runner   Runner

	mu             sync.RWMutex
	state          State
	progress       Progress
	schedulingTime time.Time
	startTime      time.Time
	completionTime time.Time
	err            error
	resumeState    any
	done           chan struct{}

	suspendRequested    atomic.Bool
	suspendAcknowledged atomic.Bool
	// suspended is set while the item waits in the scheduled collection after
	// an acknowledged suspension.
	suspended atomic.Bool
}

type ItemOption func(*Item)

func WithID(id string) ItemOption {
	return func(i *Item) { i.id = id }
}

func WithCategory(category string) ItemOption {
	return func(i *Item) { i.category = category }
}

// WithPriorityKey sets the key used by priority-ordered backends.
// Lower keys (lexicographic) are dequeued first.
func WithPriorityKey(key string) ItemOption {
	return func(i *Item) { i.priority = key }
}

// WithResumeState seeds the item with state saved by a previous suspended run.
func WithResumeState(state any) ItemOption {
	return func(i *Item) { i.resumeState = state }
}

func NewItem(r Runner, opts ...ItemOption) *Item {
	i := &Item{
		runner:   r,
		progress: ProgressIndeterminate,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(i)
	}
	if i.id == "" {
		i.id = uuid.NewString()
	}
	if i.category == "" {
		i.category = DefaultCategory
	}
	if i.priority == "" {
		i.priority = i.id
	}
	return i
}

func (i *Item) ID() string { return i.id }

func (i *Item) Category() string { return i.category }

func (i *Item) PriorityKey() string { return i.priority }

func (i *Item) Runner() Runner { return i.runner }

func (i *Item) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Item) Progress() Progress {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.progress
}

func (i *Item) SetProgress(p Progress) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.IsTerminal() {
		return
	}
	i.progress = p
}

func (i *Item) SchedulingTime() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.schedulingTime
}

func (i *Item) StartTime() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.startTime
}

func (i *Item) CompletionTime() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.completionTime
}

// Err returns the error recorded when the item failed.
func (i *Item) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

func (i *Item) ResumeState() any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.resumeState
}

// SuspendRequested reports whether the executor asked the item to stop early.
func (i *Item) SuspendRequested() bool { return i.suspendRequested.Load() }

// AcknowledgeSuspend records the state needed to resume the item later and
// marks the suspension as accepted. Run should return right after.
func (i *Item) AcknowledgeSuspend(resume any) {
	i.mu.Lock()
	i.resumeState = resume
	i.mu.Unlock()
	i.suspendAcknowledged.Store(true)
}

func (i *Item) SuspendAcknowledged() bool { return i.suspendAcknowledged.Load() }

// Suspended reports whether the item was suspended and waits to be resumed.
func (i *Item) Suspended() bool { return i.suspended.Load() }

// Done is closed once the item reaches a terminal state.
func (i *Item) Done() <-chan struct{} { return i.done }

// Wait blocks until the item is terminal or ctx is done.
func (i *Item) Wait(ctx context.Context) (State, error) {
	select {
	case <-i.done:
		return i.State(), nil
	case <-ctx.Done():
		return i.State(), ctx.Err()
	}
}

func (i *Item) requestSuspend() { i.suspendRequested.Store(true) }

// markScheduled only accepts items the engine has never seen.
func (i *Item) markScheduled(now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateAny {
		return false
	}
	i.state = StateScheduled
	if i.schedulingTime.IsZero() {
		i.schedulingTime = now
	}
	return true
}

func (i *Item) markRunning(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateRunning
	i.startTime = now
	i.suspended.Store(false)
}

// markRescheduled puts a suspended item back in the scheduled state so a later
// executor can pick it up again.
func (i *Item) markRescheduled() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateScheduled
	i.suspendRequested.Store(false)
	i.suspendAcknowledged.Store(false)
	i.suspended.Store(true)
}

// finish moves the item to a terminal state. It returns false if the item was
// already terminal.
func (i *Item) finish(state State, err error, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.IsTerminal() {
		return false
	}
	i.state = state
	i.err = err
	i.completionTime = now
	if state == StateCompleted {
		i.progress = ProgressPercent(100)
	}
	close(i.done)
	return true
}

func (i *Item) cancel(now time.Time) bool {
	return i.finish(StateCanceled, nil, now)
}

// elapsed returns the time between scheduling and completion.
func (i *Item) elapsed() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.schedulingTime.IsZero() || i.completionTime.IsZero() {
		return 0
	}
	return i.completionTime.Sub(i.schedulingTime)
}
