package models

import (
	"time"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

// QueueInfo is the live view of a queue: its configuration, toggles and counts.
type QueueInfo struct {
	ID             string
	MaxConcurrency int
	Capacity       int
	Queuing        bool
	Processing     bool
	Metrics        scheduler.QueueMetrics
}

// QueueSettings holds the toggles an operator changed at runtime. They are
// persisted so they survive a restart.
type QueueSettings struct {
	QueueID    string
	Queuing    bool
	Processing bool
	UpdatedAt  time.Time
}
