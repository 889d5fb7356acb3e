package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

func ByWorkIDs(ids ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(ids) == 0 {
			return b
		}
		return b.Where(sq.Eq{"work_id": ids})
	}
}

func ByQueues(queues ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(queues) == 0 {
			return b
		}
		return b.Where(sq.Eq{"queue_id": queues})
	}
}

func ByStates(states ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(states) == 0 {
			return b
		}
		return b.Where(sq.Eq{"state": states})
	}
}

func ByKinds(kinds ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(kinds) == 0 {
			return b
		}
		return b.Where(sq.Eq{"kind": kinds})
	}
}

// ByCompletedRange keeps rows completed in [from, to). Zero bounds are open.
func ByCompletedRange(from, to time.Time) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if !from.IsZero() {
			b = b.Where(sq.GtOrEq{"completed_at": from.UTC()})
		}
		if !to.IsZero() {
			b = b.Where(sq.Lt{"completed_at": to.UTC()})
		}
		return b
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}

type SortParam struct {
	Field string
	Desc  bool
}

var apiFieldToDBColumn = map[string]string{
	"id":             "work_id",
	"queue":          "queue_id",
	"category":       "category",
	"kind":           "kind",
	"state":          "state",
	"schedulingTime": "scheduled_at",
	"startTime":      "started_at",
	"completionTime": "completed_at",
}

// IsSortField reports whether field can be used in a SortParam.
func IsSortField(field string) bool {
	_, ok := apiFieldToDBColumn[field]
	return ok
}

// WithDefaultSort lists the most recently completed work first.
func WithDefaultSort() ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.OrderBy("completed_at DESC", "record_id DESC")
	}
}

// WithSort applies multi-field sorting. Unknown fields are ignored and the
// record id is appended as tie-breaker.
func WithSort(sorts []SortParam) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		var orderClauses []string
		for _, s := range sorts {
			col, ok := apiFieldToDBColumn[s.Field]
			if !ok {
				continue
			}
			if s.Desc {
				orderClauses = append(orderClauses, col+" DESC")
			} else {
				orderClauses = append(orderClauses, col+" ASC")
			}
		}
		if len(orderClauses) == 0 {
			return WithDefaultSort()(b)
		}
		orderClauses = append(orderClauses, "record_id ASC")
		return b.OrderBy(orderClauses...)
	}
}
