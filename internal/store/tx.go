package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

var (
	ErrTxNotActive      = errors.New("transaction is not active")
	ErrTxMarkedRollback = errors.New("transaction was marked for rollback")
)

type txKey struct{}

// dbTx is a database transaction bound to a context by TxManager.WithinTx.
type dbTx struct {
	tx *sql.Tx

	mu     sync.Mutex
	status scheduler.TxStatus
	hooks  []func(committed bool)
}

func txFromContext(ctx context.Context) (*dbTx, bool) {
	t, ok := ctx.Value(txKey{}).(*dbTx)
	return t, ok
}

func (t *dbTx) Status() scheduler.TxStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *dbTx) RegisterSynchronization(fn func(committed bool)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != scheduler.TxStatusActive {
		return ErrTxNotActive
	}
	t.hooks = append(t.hooks, fn)
	return nil
}

func (t *dbTx) markRollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == scheduler.TxStatusActive {
		t.status = scheduler.TxStatusMarkedRollback
	}
}

// end records the outcome and runs the registered hooks once.
func (t *dbTx) end(committed bool) {
	t.mu.Lock()
	if committed {
		t.status = scheduler.TxStatusCommitted
	} else {
		t.status = scheduler.TxStatusRolledBack
	}
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		runHook(fn, committed)
	}
}

func runHook(fn func(bool), committed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Named("store").Errorw("transaction hook panicked", "panic", rec)
		}
	}()
	fn(committed)
}

// TxManager runs functions inside database transactions and exposes the
// transaction bound to a context to the scheduler.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// Transaction implements scheduler.TransactionManager.
func (m *TxManager) Transaction(ctx context.Context) (scheduler.Transaction, bool) {
	t, ok := txFromContext(ctx)
	if !ok {
		return nil, false
	}
	return t, true
}

// MarkRollback forces the transaction bound to ctx to roll back when
// WithinTx returns.
func (m *TxManager) MarkRollback(ctx context.Context) {
	if t, ok := txFromContext(ctx); ok {
		t.markRollback()
	}
}

// WithinTx runs fn in a transaction. Store calls made with the context passed
// to fn use that transaction. A nested call joins the outer transaction.
// The transaction is rolled back if fn returns an error, panics or marks it
// for rollback; otherwise it is committed.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	t := &dbTx{tx: sqlTx, status: scheduler.TxStatusActive}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			t.end(false)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			zap.S().Named("store").Warnw("failed to roll back transaction", "error", rbErr)
		}
		t.end(false)
		return err
	}

	if t.Status() == scheduler.TxStatusMarkedRollback {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			zap.S().Named("store").Warnw("failed to roll back transaction", "error", rbErr)
		}
		t.end(false)
		return ErrTxMarkedRollback
	}

	if err := sqlTx.Commit(); err != nil {
		t.end(false)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.end(true)
	return nil
}
