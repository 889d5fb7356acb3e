package v1

import "time"

// WorkState is the lifecycle state of a work item.
type WorkState string

const (
	WorkStateScheduled WorkState = "scheduled"
	WorkStateRunning   WorkState = "running"
	WorkStateCompleted WorkState = "completed"
	WorkStateFailed    WorkState = "failed"
	WorkStateCanceled  WorkState = "canceled"
)

// SchedulingPolicy decides what happens when a work id is already known.
type SchedulingPolicy string

const (
	SchedulingPolicyEnqueue                 SchedulingPolicy = "enqueue"
	SchedulingPolicyCancelScheduled         SchedulingPolicy = "cancel_scheduled"
	SchedulingPolicyIfNotScheduled          SchedulingPolicy = "if_not_scheduled"
	SchedulingPolicyIfNotRunning            SchedulingPolicy = "if_not_running"
	SchedulingPolicyIfNotRunningOrScheduled SchedulingPolicy = "if_not_running_or_scheduled"
)

type Error struct {
	Error string `json:"error"`
}

type QueueMetrics struct {
	Scheduled int `json:"scheduled"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}

type Queue struct {
	Id             string       `json:"id"`
	MaxConcurrency int          `json:"maxConcurrency"`
	Capacity       int          `json:"capacity"`
	Queuing        bool         `json:"queuing"`
	Processing     bool         `json:"processing"`
	Metrics        QueueMetrics `json:"metrics"`
}

type QueueList struct {
	Queues []Queue `json:"queues"`
}

// QueueUpdate toggles a queue; omitted fields are left unchanged.
type QueueUpdate struct {
	Queuing    *bool `json:"queuing,omitempty"`
	Processing *bool `json:"processing,omitempty"`
}

type Work struct {
	Id             string     `json:"id"`
	Category       string     `json:"category"`
	PriorityKey    string     `json:"priorityKey"`
	Kind           *string    `json:"kind,omitempty"`
	State          WorkState  `json:"state"`
	Suspended      bool       `json:"suspended"`
	Progress       *float64   `json:"progress,omitempty"`
	Error          *string    `json:"error,omitempty"`
	SchedulingTime *time.Time `json:"schedulingTime,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	CompletionTime *time.Time `json:"completionTime,omitempty"`
}

type WorkList struct {
	Works []Work `json:"works"`
}

type ScheduleWorkRequest struct {
	Kind        string            `json:"kind"`
	Id          *string           `json:"id,omitempty"`
	Category    *string           `json:"category,omitempty"`
	PriorityKey *string           `json:"priorityKey,omitempty"`
	Policy      *SchedulingPolicy `json:"policy,omitempty"`
	AfterCommit *bool             `json:"afterCommit,omitempty"`
	Params      *map[string]any   `json:"params,omitempty"`
}

type AwaitRequest struct {
	// Queue id, "" or "*" for every queue.
	Queue *string `json:"queue,omitempty"`
	// Timeout as a Go duration, e.g. "30s".
	Timeout string `json:"timeout"`
}

type AwaitResponse struct {
	Completed bool `json:"completed"`
}

type PruneResponse struct {
	Removed int `json:"removed"`
}

type HistoryRecord struct {
	Id             string     `json:"id"`
	Queue          string     `json:"queue"`
	Category       string     `json:"category"`
	Kind           string     `json:"kind"`
	State          WorkState  `json:"state"`
	Error          *string    `json:"error,omitempty"`
	SchedulingTime *time.Time `json:"schedulingTime,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	CompletionTime time.Time  `json:"completionTime"`
	DurationMs     int64      `json:"durationMs"`
}

type HistoryResponse struct {
	Records   []HistoryRecord `json:"records"`
	Page      int             `json:"page"`
	PageCount int             `json:"pageCount"`
	Total     int             `json:"total"`
}

type ListQueueWorksParams struct {
	State *WorkState `form:"state,omitempty" json:"state,omitempty"`
}

type PruneCompletedParams struct {
	// OlderThan is an RFC 3339 time or a duration relative to now.
	OlderThan *string `form:"olderThan,omitempty" json:"olderThan,omitempty"`
}

// GetHistoryParams are the query parameters of GET /history. Sort entries are
// "field:asc" or "field:desc".
type GetHistoryParams struct {
	Queue    *[]string `form:"queue,omitempty" json:"queue,omitempty"`
	State    *[]string `form:"state,omitempty" json:"state,omitempty"`
	Kind     *[]string `form:"kind,omitempty" json:"kind,omitempty"`
	Id       *[]string `form:"id,omitempty" json:"id,omitempty"`
	Sort     *[]string `form:"sort,omitempty" json:"sort,omitempty"`
	Page     *int      `form:"page,omitempty" json:"page,omitempty"`
	PageSize *int      `form:"pageSize,omitempty" json:"pageSize,omitempty"`
}
