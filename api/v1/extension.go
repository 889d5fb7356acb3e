package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/internal/store"
	"github.com/kubev2v/workmanager/pkg/scheduler"
)

func NewQueueFromModel(q models.QueueInfo) Queue {
	return Queue{
		Id:             q.ID,
		MaxConcurrency: q.MaxConcurrency,
		Capacity:       q.Capacity,
		Queuing:        q.Queuing,
		Processing:     q.Processing,
		Metrics: QueueMetrics{
			Scheduled: q.Metrics.Scheduled,
			Running:   q.Metrics.Running,
			Completed: q.Metrics.Completed,
			Failed:    q.Metrics.Failed,
			Canceled:  q.Metrics.Canceled,
		},
	}
}

// NewWorkFromItem converts a live work item to an API Work.
func NewWorkFromItem(item *scheduler.Item) Work {
	w := Work{
		Id:             item.ID(),
		Category:       item.Category(),
		PriorityKey:    item.PriorityKey(),
		State:          WorkState(item.State()),
		Suspended:      item.Suspended(),
		SchedulingTime: timePtr(item.SchedulingTime()),
		StartTime:      timePtr(item.StartTime()),
		CompletionTime: timePtr(item.CompletionTime()),
	}
	if kind := models.KindOf(item); kind != "" {
		w.Kind = &kind
	}
	// not yet handed to a queue
	if w.State == "" {
		w.State = WorkStateScheduled
	}
	if p := item.Progress(); !p.Indeterminate {
		w.Progress = &p.Percent
	}
	if err := item.Err(); err != nil {
		e := err.Error()
		w.Error = &e
	}
	return w
}

func NewHistoryRecordFromModel(r models.WorkRecord) HistoryRecord {
	h := HistoryRecord{
		Id:             r.ID,
		Queue:          r.QueueID,
		Category:       r.Category,
		Kind:           r.Kind,
		State:          WorkState(r.State),
		SchedulingTime: timePtr(r.SchedulingTime),
		StartTime:      timePtr(r.StartTime),
		CompletionTime: r.CompletionTime,
		DurationMs:     r.Duration().Milliseconds(),
	}
	if r.Error != "" {
		h.Error = &r.Error
	}
	return h
}

// ParseSortParams converts "field:direction" entries to store sort params.
// The direction is optional and defaults to asc.
func ParseSortParams(sorts []string) ([]store.SortParam, error) {
	params := make([]store.SortParam, 0, len(sorts))
	for _, s := range sorts {
		field, dir, found := strings.Cut(s, ":")
		if field == "" {
			return nil, fmt.Errorf("invalid sort %q: expected field:direction", s)
		}
		if !store.IsSortField(field) {
			return nil, fmt.Errorf("invalid sort field %q", field)
		}
		desc := false
		if found {
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				desc = true
			default:
				return nil, fmt.Errorf("invalid sort direction %q", dir)
			}
		}
		params = append(params, store.SortParam{Field: field, Desc: desc})
	}
	return params, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
