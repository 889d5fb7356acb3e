// Package scheduler implements a multi-queue work engine with bounded worker
// pools, scheduling policies and suspend-on-shutdown.
//
// Work items are routed by category to named queues. Each queue owns an
// executor with a fixed number of workers pulling from a capacity-limited
// handoff queue. Items move through the scheduled, running and completed
// collections of a pluggable Backend, and a pair of completion synchronizers
// (per queue and global) lets callers block until the engine is idle.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                              Engine                                 │
//	│                                                                     │
//	│   Schedule(item, policy)                                            │
//	│        │                                                            │
//	│        ▼                                                            │
//	│   category ──► queue id ──► policy ──► executor.submit()            │
//	│                                              │                      │
//	│  ┌───────────────────────────────────────────┼─────────────────┐    │
//	│  │ executor "q1"                             ▼                 │    │
//	│  │                                  ┌─────────────────┐        │    │
//	│  │                                  │  HandoffQueue   │        │    │
//	│  │                                  │  cap k (hard 2k)│        │    │
//	│  │                                  └────────┬────────┘        │    │
//	│  │            ┌──────────────┬──────────────┤                  │    │
//	│  │            ▼              ▼              ▼                  │    │
//	│  │      ┌──────────┐   ┌──────────┐   ┌──────────┐             │    │
//	│  │      │ worker 0 │   │ worker 1 │   │ worker N │             │    │
//	│  │      └──────────┘   └──────────┘   └──────────┘             │    │
//	│  │                                                             │    │
//	│  │  CompletionSynchronizer "q1" ──────────► global synchronizer│    │
//	│  └─────────────────────────────────────────────────────────────┘    │
//	│                                                                     │
//	│   Backend: scheduled │ running │ completed   (per queue)            │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Item Lifecycle
//
//	            Schedule
//	               │
//	               ▼
//	         ┌───────────┐   removeScheduled / drain   ┌───────────┐
//	         │ SCHEDULED │ ──────────────────────────► │ CANCELED  │
//	         └─────┬─────┘                             └───────────┘
//	               │ worker takes it                         ▲
//	               ▼                                         │ interrupted
//	         ┌───────────┐ ──────────────────────────────────┘
//	         │  RUNNING  │ ──── error / panic ───────► FAILED
//	         └─────┬─────┘
//	               │ returns           suspend acknowledged
//	               ▼                  ──────────────────► SCHEDULED (resumed
//	           COMPLETED                                  by the next executor)
//
// Terminal items are immutable and live only in the completed collection
// until they are pruned. A suspension acknowledged after a shutdown timed out
// counts as interrupted.
//
// # Scheduling Policies
//
//   - PolicyEnqueue: always enqueue.
//   - PolicyCancelScheduled: cancel a scheduled item with the same id first.
//   - PolicyIfNotScheduled, PolicyIfNotRunning, PolicyIfNotRunningOrScheduled:
//     cancel the new item if one with the same id is in the given state.
//
// Policy application and submission are serialized per item id.
//
// # Capacity and Reentrancy
//
// External producers wait, one at a time, until the scheduled collection is
// below the configured capacity, polling every 100ms. Workers pass a context
// built with WithWorker to the items they run; a Schedule call made with that
// context skips the wait and only fails with ErrQueueFull when twice the
// capacity is queued:
//
//	func (w *fanOut) Run(ctx context.Context, item *scheduler.Item) error {
//	    for _, child := range w.children {
//	        // never blocks the worker running this item
//	        if err := w.engine.Schedule(ctx, child, scheduler.PolicyEnqueue); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	}
//
// # Completion Counting
//
// submit raises the synchronizer count before the item is enqueued, and every
// path that ends the item's stay in the scheduled or running collections
// (completion, failure, cancellation, rejection, drain, suspension during
// shutdown) lowers it exactly once. AwaitCompletion blocks on the per-queue or
// global count:
//
//	ok, err := engine.AwaitCompletion(ctx, "q1", 2*time.Second)
//
// # Shutdown
//
//  1. shutdownAndSuspend on every executor:
//     - the handoff queue is closed, further submissions are canceled
//     - scheduled items are drained and marked CANCELED
//     - running items get SuspendRequested() == true
//     │
//     ▼
//  2. awaitTerminationOrSave with a deadline shared by all executors:
//     - workers exit once their items return
//     - on timeout the run context is canceled and false is reported
//     │
//     ▼
//  3. items that called AcknowledgeSuspend stay SCHEDULED in the backend and
//     are resumed when the engine is started again
//
// A cooperative item looks like:
//
//	func (w *copyWork) Run(ctx context.Context, item *scheduler.Item) error {
//	    for w.next < len(w.files) {
//	        if item.SuspendRequested() {
//	            item.AcknowledgeSuspend(w.next)
//	            return nil
//	        }
//	        if err := w.copy(ctx, w.files[w.next]); err != nil {
//	            return err
//	        }
//	        w.next++
//	        item.SetProgress(scheduler.ProgressPercent(100 * float64(w.next) / float64(len(w.files))))
//	    }
//	    return nil
//	}
//
// # Transactions
//
// ScheduleAfterCommit asks the TransactionManager for the transaction bound
// to the context. An active transaction gets a hook that schedules the item on
// commit and cancels it on rollback; a transaction marked for rollback cancels
// the item at once; anything else schedules immediately.
package scheduler
