package scheduler

import (
	"context"
	"time"
)

// Backend stores the three per-queue collections of work items: scheduled,
// running and completed. Implementations must move items between collections
// atomically with respect to lookups.
type Backend interface {
	// ScheduledQueue returns the scheduled collection of a queue, creating the
	// queue structures on first use. hardCapacity <= 0 means unbounded.
	ScheduledQueue(queueID string, hardCapacity int) ScheduledQueue

	// MarkRunning moves a taken item to the running collection.
	MarkRunning(queueID string, item *Item)
	// MarkCompleted moves an item to the completed collection.
	MarkCompleted(queueID string, item *Item)
	// Reschedule puts a suspended item back at the end of the scheduled collection.
	Reschedule(queueID string, item *Item)

	// Find looks an item up by id. StateAny searches scheduled, then running,
	// then completed items.
	Find(id string, state State) (*Item, bool)
	List(queueID string, state State) []*Item
	Size(queueID string, state State) int

	// RemoveScheduled cancels a scheduled item that no worker has taken yet
	// and moves it to the completed collection.
	RemoveScheduled(queueID, id string) (*Item, bool)
	// DrainAndMarkCanceled cancels the scheduled items of the queue that no
	// worker has taken and returns them. Suspended items are kept so that a
	// later executor can resume them.
	DrainAndMarkCanceled(queueID string) []*Item
	// Prune removes completed items that finished before olderThan.
	// A zero olderThan removes all of them.
	Prune(queueID string, olderThan time.Time) int
}

// ScheduledQueue is the storage the handoff queue wraps.
type ScheduledQueue interface {
	// Offer appends the item unless the hard capacity is reached.
	Offer(item *Item) bool
	// Take blocks until an item can be handed to a worker or ctx is done.
	// A taken item stays visible as scheduled until MarkRunning or MarkCompleted.
	Take(ctx context.Context) (*Item, error)
	// Remove drops an item that has not been taken yet.
	Remove(item *Item) bool
	// Pending returns the items waiting to be taken, in dequeue order.
	Pending() []*Item
	// Len is the number of items waiting to be taken.
	Len() int
	// SetActive enables or disables Take.
	SetActive(active bool)
	Active() bool
}
