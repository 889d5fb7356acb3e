package models

import (
	"time"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

// WorkRecord is the persisted trace of an item that reached a terminal state.
type WorkRecord struct {
	ID             string
	QueueID        string
	Category       string
	Kind           string
	State          scheduler.State
	Error          string
	SchedulingTime time.Time
	StartTime      time.Time
	CompletionTime time.Time
}

func (r WorkRecord) Duration() time.Duration {
	if r.StartTime.IsZero() || r.CompletionTime.IsZero() {
		return 0
	}
	return r.CompletionTime.Sub(r.StartTime)
}

type kinded interface {
	Kind() string
}

// KindOf returns the kind name of the item's runner, or "" when the runner
// does not declare one.
func KindOf(item *scheduler.Item) string {
	if k, ok := item.Runner().(kinded); ok {
		return k.Kind()
	}
	return ""
}

func NewWorkRecord(queueID string, item *scheduler.Item) WorkRecord {
	r := WorkRecord{
		ID:             item.ID(),
		QueueID:        queueID,
		Category:       item.Category(),
		Kind:           KindOf(item),
		State:          item.State(),
		SchedulingTime: item.SchedulingTime(),
		StartTime:      item.StartTime(),
		CompletionTime: item.CompletionTime(),
	}
	if err := item.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}
