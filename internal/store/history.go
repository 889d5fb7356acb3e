package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/pkg/scheduler"
)

// HistoryStore keeps one row per item that reached a terminal state.
type HistoryStore struct {
	db QueryInterceptor
}

func NewHistoryStore(db QueryInterceptor) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Save(ctx context.Context, records ...models.WorkRecord) error {
	if len(records) == 0 {
		return nil
	}

	builder := sq.Insert(historyTable).Columns(historyColumns...)
	for _, r := range records {
		builder = builder.Values(
			r.ID,
			r.QueueID,
			r.Category,
			r.Kind,
			string(r.State),
			r.Error,
			nullTime(r.SchedulingTime),
			nullTime(r.StartTime),
			r.CompletionTime.UTC(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *HistoryStore) List(ctx context.Context, opts ...ListOption) ([]models.WorkRecord, error) {
	builder := sq.Select(historyColumns...).From(historyTable)

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.WorkRecord
	for rows.Next() {
		var (
			r                  models.WorkRecord
			state              string
			scheduled, started sql.NullTime
		)
		err := rows.Scan(
			&r.ID,
			&r.QueueID,
			&r.Category,
			&r.Kind,
			&state,
			&r.Error,
			&scheduled,
			&started,
			&r.CompletionTime,
		)
		if err != nil {
			return nil, err
		}
		r.State = scheduler.State(state)
		r.SchedulingTime = scheduled.Time
		r.StartTime = started.Time
		records = append(records, r)
	}

	return records, rows.Err()
}

// Count takes filter options only.
func (s *HistoryStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From(historyTable)

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// DeleteOlderThan removes rows completed before t and returns how many went.
func (s *HistoryStore) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	query, args, err := sq.Delete(historyTable).Where(sq.Lt{"completed_at": t.UTC()}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
