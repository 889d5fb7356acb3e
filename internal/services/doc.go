// Package services implements the business logic layer of the workd daemon.
//
// Services sit between the HTTP handlers and the engine/store pair. They turn
// requests into work items, translate engine errors into the error kinds the
// handlers map to status codes, and keep the store in step with the engine.
//
// # Service Dependency Graph
//
//	Handlers (HTTP endpoints)
//	    │
//	    ▼
//	Services Layer
//	    ├── WorkService ─────► Engine, works.Registry, Store (history, queue settings, tx)
//	    └── HistoryRecorder ─► Store (history)
//	            ▲
//	            └──── Engine listener (every terminal item)
//
// # WorkService
//
// Operations:
//   - Schedule: build a runner from (kind, params), apply id/category/priority
//     and policy, then Engine.Schedule, or Engine.ScheduleAfterCommit inside a
//     store transaction when AfterCommit is set
//   - Get / Cancel: lookup by id, cancel a scheduled item
//   - ListQueues / GetQueue: configuration, live toggles and counts
//   - UpdateQueue: toggle queuing/processing ("*" for all) and persist them
//   - RestoreQueueSettings: re-apply persisted toggles at startup
//   - ListWork, PruneCompleted, Await: per queue engine views
//   - History: filtered, sorted, paged read of the history store
//
// Errors:
//
//	┌──────────────────────────────────────┬────────────────────────────────┐
//	│ Error                                │ Raised for                     │
//	├──────────────────────────────────────┼────────────────────────────────┤
//	│ errors.ResourceNotFoundError         │ unknown work or queue id       │
//	│ errors.InvalidArgumentError          │ kind, params, policy, state    │
//	│ errors.ConflictError                 │ cancel of a non-scheduled item │
//	│ scheduler.ConfigurationError         │ engine stopped, unknown queue  │
//	│ scheduler.SubmissionError            │ full or interrupted queue      │
//	└──────────────────────────────────────┴────────────────────────────────┘
//
// Usage:
//
//	svc := services.NewWorkService(engine, works.DefaultRegistry(), st)
//	item, err := svc.Schedule(ctx, services.ScheduleParams{
//	    Kind:   "sleep",
//	    ID:     "nightly",
//	    Policy: "if_not_running_or_scheduled",
//	    Params: map[string]any{"duration": "30s"},
//	})
//
// # HistoryRecorder
//
// The recorder is registered with scheduler.WithListener. WorkCompleted runs
// on the worker goroutine, so it only enqueues a record into a bounded buffer
// and drops it when the buffer is full. A single writer goroutine saves
// batches:
//
//	WorkCompleted ──► buffer ──► batch ──(100 records | 500ms | Flush)──► HistoryStore.Save
//	                                                                      (3 tries, exp. backoff)
//
// With a retention, rows older than it are deleted every prune interval.
// Stop flushes the buffer and waits for the writer.
//
//	rec := services.NewHistoryRecorder(st.History(), services.WithRetention(7*24*time.Hour, time.Hour))
//	rec.Start(ctx)
//	defer rec.Stop()
package services
