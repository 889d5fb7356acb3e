package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type executorState int32

const (
	executorActive executorState = iota
	executorShuttingDown
	executorTerminated
	executorTimedOut
)

func (s executorState) String() string {
	switch s {
	case executorActive:
		return "active"
	case executorShuttingDown:
		return "shutting-down"
	case executorTerminated:
		return "terminated"
	case executorTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// executor runs the items of one queue on a fixed set of workers.
// A shut down executor is never reused; the engine builds a new one.
type executor struct {
	queueID   string
	workers   int
	backend   Backend
	handoff   *HandoffQueue
	sync      *CompletionSynchronizer
	metrics   Metrics
	listeners listeners
	log       *zap.SugaredLogger

	state atomic.Int32

	// takeCtx stops the workers from taking new items.
	takeCtx    context.Context
	takeCancel context.CancelFunc
	// runCtx is handed to running items and canceled only when a shutdown
	// times out.
	runCtx    context.Context
	runCancel context.CancelFunc

	// runningMu guards running and serializes rescheduling with shutdown.
	runningMu sync.Mutex
	running   queue[*Item]

	wg   sync.WaitGroup
	done chan struct{}
}

func newExecutor(q QueueConfig, backend Backend, parent *CompletionSynchronizer, metrics Metrics, ls listeners) *executor {
	e := &executor{
		queueID:   q.ID,
		workers:   q.MaxConcurrency,
		backend:   backend,
		handoff:   NewHandoffQueue(backend, q.ID, q.Capacity),
		sync:      NewCompletionSynchronizer(q.ID, parent),
		metrics:   metrics,
		listeners: ls,
		log:       zap.S().Named("executor").With("queue", q.ID),
		done:      make(chan struct{}),
	}
	e.takeCtx, e.takeCancel = context.WithCancel(context.Background())
	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	e.handoff.SetActive(q.Processing)

	// items suspended by a previous executor are resumed by this one
	if resumed := e.handoff.Len(); resumed > 0 {
		for range resumed {
			e.sync.SignalSchedule()
		}
		e.log.Infow("resuming suspended work", "count", resumed)
	}

	for i := range e.workers {
		e.wg.Add(1)
		go e.work(i)
	}
	go func() {
		e.wg.Wait()
		close(e.done)
	}()

	e.log.Debugw("executor started", "workers", e.workers, "capacity", q.Capacity, "processing", q.Processing)
	return e
}

func (e *executor) isShutdown() bool {
	return executorState(e.state.Load()) != executorActive
}

// submit hands a scheduled item to the workers. The completion counter is
// raised before the item becomes visible to them and lowered again when the
// handoff queue refuses it.
func (e *executor) submit(ctx context.Context, item *Item) error {
	e.sync.SignalSchedule()

	if e.isShutdown() {
		e.reject(item)
		return nil
	}

	if err := e.handoff.Put(ctx, item); err != nil {
		if errors.Is(err, ErrHandoffClosed) {
			e.reject(item)
			return nil
		}
		item.cancel(time.Now())
		e.finished(item)
		e.sync.SignalCompletion()
		return &SubmissionError{QueueID: e.queueID, WorkID: item.ID(), Err: err}
	}
	e.metrics.WorkScheduled(e.queueID)

	// a shutdown that started while we were enqueuing may have missed the item
	if e.isShutdown() && e.handoff.Remove(item) {
		e.reject(item)
	}
	return nil
}

// reject cancels an item that was counted but will never run.
func (e *executor) reject(item *Item) {
	item.cancel(time.Now())
	e.backend.MarkCompleted(e.queueID, item)
	e.log.Debugw("work rejected", "work", item.ID())
	e.finished(item)
	e.sync.SignalCompletion()
}

func (e *executor) finished(item *Item) {
	e.metrics.WorkCompleted(e.queueID, item.State(), item.elapsed())
	e.listeners.notify(e.queueID, item)
}

func (e *executor) work(workerID int) {
	defer e.wg.Done()
	for {
		item, err := e.handoff.Take(e.takeCtx)
		if err != nil {
			return
		}
		if e.isShutdown() {
			e.reject(item)
			continue
		}
		e.execute(workerID, item)
	}
}

func (e *executor) execute(workerID int, item *Item) {
	item.markRunning(time.Now())
	e.backend.MarkRunning(e.queueID, item)

	e.runningMu.Lock()
	e.running.Push(item)
	if e.isShutdown() {
		item.requestSuspend()
	}
	e.runningMu.Unlock()
	e.metrics.WorkRunning(e.queueID, 1)

	ctx := WithWorker(e.runCtx, WorkerInfo{QueueID: e.queueID, WorkerID: workerID})
	err := e.runItem(ctx, item)

	e.metrics.WorkRunning(e.queueID, -1)

	e.runningMu.Lock()
	e.running.Remove(item)
	// a suspension acknowledged after a timed out shutdown is not resumed
	if item.SuspendAcknowledged() && e.runCtx.Err() == nil {
		item.markRescheduled()
		e.backend.Reschedule(e.queueID, item)
		shutdown := e.isShutdown()
		e.runningMu.Unlock()

		e.log.Infow("work suspended", "work", item.ID())
		// an active executor takes the item again, so it stays counted
		if shutdown {
			e.sync.SignalCompletion()
		}
		return
	}
	e.runningMu.Unlock()

	now := time.Now()
	switch {
	case e.runCtx.Err() != nil:
		item.finish(StateCanceled, err, now)
		e.log.Infow("work interrupted by shutdown", "work", item.ID(), "acknowledged", item.SuspendAcknowledged())
	case err != nil:
		item.finish(StateFailed, err, now)
		e.log.Warnw("work failed", "work", item.ID(), "error", err)
	default:
		item.finish(StateCompleted, nil, now)
	}
	e.backend.MarkCompleted(e.queueID, item)
	e.finished(item)
	e.sync.SignalCompletion()
}

func (e *executor) runItem(ctx context.Context, item *Item) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker panicked: %v", rec)
		}
		e.cleanup(item, err)
	}()
	return item.runner.Run(ctx, item)
}

func (e *executor) cleanup(item *Item, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Errorw("work cleanup panicked", "work", item.ID(), "panic", rec)
		}
	}()
	item.runner.Cleanup(err == nil, err)
}

// removeScheduled cancels an item that no worker has taken yet.
func (e *executor) removeScheduled(id string) (*Item, bool) {
	item, ok := e.backend.RemoveScheduled(e.queueID, id)
	if !ok {
		return nil, false
	}
	e.finished(item)
	e.sync.SignalCompletion()
	return item, true
}

func (e *executor) setProcessing(active bool) {
	e.handoff.SetActive(active)
}

// shutdownAndSuspend stops taking work, cancels what is still waiting and asks
// the running items to suspend. It does not wait for them.
func (e *executor) shutdownAndSuspend() {
	if !e.state.CompareAndSwap(int32(executorActive), int32(executorShuttingDown)) {
		return
	}
	e.handoff.Close()
	e.takeCancel()

	e.runningMu.Lock()
	defer e.runningMu.Unlock()

	drained := e.drain()

	// suspended items left waiting are resumed by the next executor
	var suspended int
	for _, it := range e.handoff.Pending() {
		if it.Suspended() {
			suspended++
		}
	}
	e.sync.SignalCompletions(suspended)

	for _, it := range e.running {
		it.requestSuspend()
	}
	e.log.Infow("executor shutting down", "drained", drained, "suspended", suspended, "running", e.running.Len())
}

// drain must be called with runningMu held.
func (e *executor) drain() int {
	drained := e.backend.DrainAndMarkCanceled(e.queueID)
	for _, it := range drained {
		e.finished(it)
	}
	e.sync.SignalCompletions(len(drained))
	return len(drained)
}

// awaitTerminationOrSave waits for the workers to exit. On timeout it
// interrupts the running items and cancels anything still waiting, and
// reports false.
func (e *executor) awaitTerminationOrSave(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(max(timeout, 0))
	defer timer.Stop()

	select {
	case <-e.done:
		e.state.Store(int32(executorTerminated))
		e.log.Debugw("executor terminated", "state", executorTerminated)
		return true
	case <-timer.C:
	case <-ctx.Done():
	}

	e.state.Store(int32(executorTimedOut))
	e.runCancel()

	e.runningMu.Lock()
	drained := e.drain()
	stillRunning := e.running.Len()
	e.runningMu.Unlock()

	e.log.Warnw("executor did not terminate in time", "state", executorTimedOut, "drained", drained, "running", stillRunning)
	return false
}
