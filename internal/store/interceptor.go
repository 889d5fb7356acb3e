package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// QueryInterceptor is the query surface shared by *sql.DB and *sql.Tx.
type QueryInterceptor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loggingInterceptor debug-logs every query and runs it on the transaction
// bound to the context, if any.
type loggingInterceptor struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

func newLoggingInterceptor(db *sql.DB) *loggingInterceptor {
	return &loggingInterceptor{db: db, log: zap.S().Named("store")}
}

func (i *loggingInterceptor) target(ctx context.Context) (QueryInterceptor, bool) {
	if tx, ok := txFromContext(ctx); ok {
		return tx.tx, true
	}
	return i.db, false
}

func (i *loggingInterceptor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q, inTx := i.target(ctx)
	i.log.Debugw("exec", "query", query, "args", args, "tx", inTx)
	return q.ExecContext(ctx, query, args...)
}

func (i *loggingInterceptor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q, inTx := i.target(ctx)
	i.log.Debugw("query", "query", query, "args", args, "tx", inTx)
	return q.QueryContext(ctx, query, args...)
}

func (i *loggingInterceptor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	q, inTx := i.target(ctx)
	i.log.Debugw("query row", "query", query, "args", args, "tx", inTx)
	return q.QueryRowContext(ctx, query, args...)
}
