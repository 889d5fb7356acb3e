// Package store implements the data access layer of the workd daemon.
//
// This package persists what must outlive the in-memory engine: the history of
// finished work items and the queue toggles an operator changed at runtime.
// It uses DuckDB through database/sql.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│        HistoryStore            │      QueueSettingsStore        │
//	│             ▼                  │             ▼                  │
//	│        work_history            │        queue_settings          │
//	├────────────────────────────────┴────────────────────────────────┤
//	│              QueryInterceptor (debug log, tx routing)           │
//	├─────────────────────────────────────────────────────────────────┤
//	│         TxManager  ──►  scheduler.TransactionManager            │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Tables
//
// Created by migrations (internal/store/migrations/sql/):
//
//	┌────────────────────┬─────────────────────────────────────────────┐
//	│  Table             │  Purpose                                    │
//	├────────────────────┼─────────────────────────────────────────────┤
//	│  work_history      │  One row per terminal work item             │
//	│  queue_settings    │  Queuing/processing toggles per queue       │
//	│  schema_migrations │  Migration version tracking                 │
//	└────────────────────┴─────────────────────────────────────────────┘
//
// # Initialization Flow
//
//	db, _ := store.NewDB(store.MemoryDSN)   // or a file under DataFolder
//	migrations.Run(ctx, db)                 // applies pending sql/NNN_*.sql
//	s := store.NewStore(db)                 // sub-stores share one interceptor
//
// # HistoryStore
//
// Schema:
//
//	work_history (
//	    record_id BIGINT PRIMARY KEY (sequence),
//	    work_id, queue_id, category, kind, state, error VARCHAR,
//	    scheduled_at, started_at TIMESTAMP NULL,
//	    completed_at TIMESTAMP NOT NULL
//	)
//
// The same work id may appear several times: an id can be scheduled again once
// the previous item is done.
//
// Methods:
//   - Save(ctx, records...) → multi-row INSERT
//   - List(ctx, opts...) → []models.WorkRecord
//   - Count(ctx, filters...) → int
//   - DeleteOlderThan(ctx, t) → rows removed
//
// List Options:
//
//	records, err := s.History().List(ctx,
//	    store.ByQueues("io"),
//	    store.ByStates("failed", "canceled"),
//	    store.WithSort([]store.SortParam{{Field: "completionTime", Desc: true}}),
//	    store.WithLimit(50),
//	    store.WithOffset(0),
//	)
//
//   - ByWorkIDs, ByQueues, ByStates, ByKinds: IN filters, no-op when empty
//   - ByCompletedRange(from, to): completed_at in [from, to)
//   - WithLimit, WithOffset: paging
//   - WithSort: API field names mapped to columns, record_id tie-breaker
//   - WithDefaultSort: newest first
//
// # QueueSettingsStore
//
// Keyed UPSERT on queue_id: INSERT ... ON CONFLICT (queue_id) DO UPDATE.
//
// # Transactions
//
// TxManager.WithinTx begins a transaction and binds it to the context passed
// to the callback. The QueryInterceptor routes every query made with that
// context to the transaction. The scheduler sees the same transaction through
// TxManager.Transaction, so work scheduled with ScheduleAfterCommit inside
// WithinTx starts only if the transaction commits:
//
//	err := s.Tx().WithinTx(ctx, func(ctx context.Context) error {
//	    if err := s.QueueSettings().Save(ctx, settings); err != nil {
//	        return err
//	    }
//	    return engine.ScheduleAfterCommit(ctx, item, scheduler.PolicyEnqueue)
//	})
//
// Returning an error, panicking or calling MarkRollback rolls the transaction
// back and cancels the deferred items.
package store
