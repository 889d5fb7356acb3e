package scheduler

import (
	"fmt"
	"slices"
)

const (
	// DefaultQueueID receives the categories without an explicit mapping.
	DefaultQueueID = "default"
	// AllQueues targets every configured queue in administrative calls.
	AllQueues = "*"
)

// QueueConfig describes one queue. Capacity 0 means unbounded.
type QueueConfig struct {
	ID             string
	MaxConcurrency int
	Capacity       int
	Queuing        bool
	Processing     bool
}

// NewQueueConfig returns a queue with queuing and processing enabled.
func NewQueueConfig(id string, maxConcurrency, capacity int) QueueConfig {
	return QueueConfig{
		ID:             id,
		MaxConcurrency: maxConcurrency,
		Capacity:       capacity,
		Queuing:        true,
		Processing:     true,
	}
}

// Config is the resolved engine configuration.
type Config struct {
	Queues []QueueConfig
	// Categories maps a work category to a queue id.
	Categories     map[string]string
	DefaultQueueID string
}

func (c Config) defaultQueueID() string {
	if c.DefaultQueueID == "" {
		return DefaultQueueID
	}
	return c.DefaultQueueID
}

func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Queues))
	for _, q := range c.Queues {
		if q.ID == "" {
			return NewConfigurationError(q.ID, "queue id is empty")
		}
		if q.ID == AllQueues {
			return NewConfigurationError(q.ID, "queue id is reserved")
		}
		if _, ok := seen[q.ID]; ok {
			return NewConfigurationError(q.ID, "queue is defined twice")
		}
		if q.MaxConcurrency < 0 {
			return NewConfigurationError(q.ID, fmt.Sprintf("negative max concurrency %d", q.MaxConcurrency))
		}
		if q.Capacity < 0 {
			return NewConfigurationError(q.ID, fmt.Sprintf("negative capacity %d", q.Capacity))
		}
		seen[q.ID] = struct{}{}
	}
	if _, ok := seen[c.defaultQueueID()]; !ok {
		return NewConfigurationError(c.defaultQueueID(), "default queue is not defined")
	}
	for category, queueID := range c.Categories {
		if _, ok := seen[queueID]; !ok {
			return NewConfigurationError(queueID, fmt.Sprintf("category %q maps to an undefined queue", category))
		}
	}
	return nil
}

func (c Config) queue(id string) (QueueConfig, bool) {
	i := slices.IndexFunc(c.Queues, func(q QueueConfig) bool { return q.ID == id })
	if i < 0 {
		return QueueConfig{}, false
	}
	return c.Queues[i], true
}

func (c Config) categoryQueueID(category string) string {
	if id, ok := c.Categories[category]; ok {
		return id
	}
	return c.defaultQueueID()
}

// QueueMetrics is a snapshot of the item counts of one queue.
type QueueMetrics struct {
	QueueID   string
	Scheduled int
	Running   int
	Completed int
	Failed    int
	Canceled  int
}
