package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// capacityPollInterval is how often a blocked producer re-checks the queue length.
const capacityPollInterval = 100 * time.Millisecond

var errNoCapacity = errors.New("no capacity")

// HandoffQueue hands items from producers to the executor workers.
//
// The underlying storage holds twice the nominal capacity. External producers
// wait, one at a time, until the nominal capacity is available. Producers
// running inside an engine worker skip the wait and only fail when the doubled
// hard capacity is exhausted, so a worker that schedules more work never
// blocks the pool it belongs to.
type HandoffQueue struct {
	queueID  string
	capacity int
	storage  ScheduledQueue

	// putLock admits a single external producer into the capacity wait.
	putLock chan struct{}
	closed  chan struct{}
	once    sync.Once
	poll    time.Duration
}

// NewHandoffQueue wraps the scheduled collection of queueID. capacity <= 0
// means unbounded.
func NewHandoffQueue(backend Backend, queueID string, capacity int) *HandoffQueue {
	hard := 0
	if capacity > 0 {
		hard = 2 * capacity
	}
	return &HandoffQueue{
		queueID:  queueID,
		capacity: capacity,
		storage:  backend.ScheduledQueue(queueID, hard),
		putLock:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
		poll:     capacityPollInterval,
	}
}

func (h *HandoffQueue) Capacity() int { return h.capacity }

// Put enqueues the item, blocking external producers while the queue is at
// capacity. It returns ErrHandoffInterrupted (wrapping the context error) when
// ctx is done before the item was enqueued, and ErrHandoffClosed after Close.
func (h *HandoffQueue) Put(ctx context.Context, item *Item) error {
	if h.isClosed() {
		return ErrHandoffClosed
	}

	if h.capacity <= 0 {
		if !h.storage.Offer(item) {
			return ErrQueueFull
		}
		return nil
	}

	if IsWorkerContext(ctx) {
		if !h.storage.Offer(item) {
			return fmt.Errorf("%w: %d items", ErrQueueFull, 2*h.capacity)
		}
		return nil
	}

	select {
	case h.putLock <- struct{}{}:
	case <-h.closed:
		return ErrHandoffClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrHandoffInterrupted, ctx.Err())
	}
	defer func() { <-h.putLock }()

	// stop waiting as soon as either the caller gives up or the queue closes
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.closed:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	_, err := backoff.Retry(waitCtx, func() (struct{}, error) {
		if h.storage.Len() >= h.capacity {
			return struct{}{}, errNoCapacity
		}
		if !h.storage.Offer(item) {
			return struct{}{}, errNoCapacity
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(h.poll)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if h.isClosed() {
		return ErrHandoffClosed
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrHandoffInterrupted, ctx.Err())
	}
	return err
}

// Take blocks until an item is available or ctx is done.
func (h *HandoffQueue) Take(ctx context.Context) (*Item, error) {
	return h.storage.Take(ctx)
}

func (h *HandoffQueue) Remove(item *Item) bool {
	return h.storage.Remove(item)
}

func (h *HandoffQueue) Pending() []*Item {
	return h.storage.Pending()
}

func (h *HandoffQueue) Len() int {
	return h.storage.Len()
}

func (h *HandoffQueue) SetActive(active bool) {
	h.storage.SetActive(active)
}

func (h *HandoffQueue) Active() bool {
	return h.storage.Active()
}

// Close makes pending and future Put calls fail with ErrHandoffClosed.
func (h *HandoffQueue) Close() {
	h.once.Do(func() { close(h.closed) })
}

func (h *HandoffQueue) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}
