package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps all collections in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	queues   map[string]*memoryQueue
	order    []string
	priority bool
}

type MemoryBackendOption func(*MemoryBackend)

// WithPriorityOrdering makes scheduled items dequeue by ascending priority key
// instead of arrival order.
func WithPriorityOrdering() MemoryBackendOption {
	return func(b *MemoryBackend) { b.priority = true }
}

func NewMemoryBackend(opts ...MemoryBackendOption) *MemoryBackend {
	b := &MemoryBackend{queues: make(map[string]*memoryQueue)}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *MemoryBackend) ScheduledQueue(queueID string, hardCapacity int) ScheduledQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queueID]
	if !ok {
		var pending scheduledOrder = &fifoOrder{}
		if b.priority {
			pending = &priorityOrder{}
		}
		q = &memoryQueue{
			id:      queueID,
			pending: pending,
			claimed: make(map[*Item]struct{}),
			active:  true,
			wakeup:  make(chan struct{}),
		}
		b.queues[queueID] = q
		b.order = append(b.order, queueID)
	}
	q.mu.Lock()
	q.hardCapacity = hardCapacity
	q.mu.Unlock()
	return q
}

func (b *MemoryBackend) queue(queueID string) (*memoryQueue, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.queues[queueID]
	return q, ok
}

func (b *MemoryBackend) all() []*memoryQueue {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*memoryQueue, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.queues[id])
	}
	return out
}

func (b *MemoryBackend) MarkRunning(queueID string, item *Item) {
	q, ok := b.queue(queueID)
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, item)
	q.running.Push(item)
}

func (b *MemoryBackend) MarkCompleted(queueID string, item *Item) {
	q, ok := b.queue(queueID)
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, item)
	q.running.Remove(item)
	q.completed.Push(item)
}

func (b *MemoryBackend) Reschedule(queueID string, item *Item) {
	q, ok := b.queue(queueID)
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, item)
	q.running.Remove(item)
	q.pending.push(item)
	q.notify()
}

func (b *MemoryBackend) Find(id string, state State) (*Item, bool) {
	queues := b.all()
	lookups := []State{state}
	if state == StateAny {
		lookups = []State{StateScheduled, StateRunning, StateCompleted}
	}
	for _, s := range lookups {
		for _, q := range queues {
			if it, ok := q.find(id, s); ok {
				return it, true
			}
		}
	}
	return nil, false
}

func (b *MemoryBackend) List(queueID string, state State) []*Item {
	q, ok := b.queue(queueID)
	if !ok {
		return nil
	}
	return q.list(state)
}

func (b *MemoryBackend) Size(queueID string, state State) int {
	q, ok := b.queue(queueID)
	if !ok {
		return 0
	}
	return q.size(state)
}

func (b *MemoryBackend) RemoveScheduled(queueID, id string) (*Item, bool) {
	q, ok := b.queue(queueID)
	if !ok {
		return nil, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	it := q.pending.removeID(id)
	if it == nil {
		return nil, false
	}
	it.cancel(time.Now())
	q.completed.Push(it)
	return it, true
}

func (b *MemoryBackend) DrainAndMarkCanceled(queueID string) []*Item {
	q, ok := b.queue(queueID)
	if !ok {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	var drained []*Item
	for _, it := range q.pending.items() {
		if it.Suspended() {
			continue
		}
		q.pending.remove(it)
		it.cancel(now)
		q.completed.Push(it)
		drained = append(drained, it)
	}
	return drained
}

func (b *MemoryBackend) Prune(queueID string, olderThan time.Time) int {
	q, ok := b.queue(queueID)
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if olderThan.IsZero() {
		n := q.completed.Len()
		q.completed = nil
		return n
	}
	kept := make(queue[*Item], 0, q.completed.Len())
	for _, it := range q.completed {
		if it.CompletionTime().Before(olderThan) {
			continue
		}
		kept = append(kept, it)
	}
	n := q.completed.Len() - kept.Len()
	q.completed = kept
	return n
}

type memoryQueue struct {
	id string

	mu           sync.Mutex
	pending      scheduledOrder
	claimed      map[*Item]struct{}
	running      queue[*Item]
	completed    queue[*Item]
	hardCapacity int
	active       bool
	// wakeup is closed and replaced whenever Take may be able to proceed.
	wakeup chan struct{}
}

// notify must be called with mu held.
func (q *memoryQueue) notify() {
	close(q.wakeup)
	q.wakeup = make(chan struct{})
}

func (q *memoryQueue) Offer(item *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.hardCapacity > 0 && q.pending.len() >= q.hardCapacity {
		return false
	}
	q.pending.push(item)
	q.notify()
	return true
}

func (q *memoryQueue) Take(ctx context.Context) (*Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.mu.Lock()
		if q.active && q.pending.len() > 0 {
			it := q.pending.pop()
			q.claimed[it] = struct{}{}
			q.mu.Unlock()
			return it, nil
		}
		wakeup := q.wakeup
		q.mu.Unlock()

		select {
		case <-wakeup:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *memoryQueue) Remove(item *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.remove(item)
}

func (q *memoryQueue) Pending() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.items()
}

func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.len()
}

func (q *memoryQueue) SetActive(active bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active = active
	if active {
		q.notify()
	}
}

func (q *memoryQueue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *memoryQueue) scheduled() []*Item {
	out := q.pending.items()
	for it := range q.claimed {
		out = append(out, it)
	}
	return out
}

func (q *memoryQueue) find(id string, state State) (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var candidates []*Item
	switch state {
	case StateScheduled:
		candidates = q.scheduled()
	case StateRunning:
		candidates = q.running.Items()
	default:
		// latest completion first
		for i := q.completed.Len() - 1; i >= 0; i-- {
			it := q.completed[i]
			if it.ID() == id && (state == StateCompleted || it.State() == state) {
				return it, true
			}
		}
		return nil, false
	}
	for _, it := range candidates {
		if it.ID() == id {
			return it, true
		}
	}
	return nil, false
}

func (q *memoryQueue) list(state State) []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch state {
	case StateAny:
		out := q.scheduled()
		out = append(out, q.running...)
		return append(out, q.completed...)
	case StateScheduled:
		return q.scheduled()
	case StateRunning:
		return q.running.Items()
	case StateCompleted:
		return q.completed.Items()
	default:
		var out []*Item
		for _, it := range q.completed {
			if it.State() == state {
				out = append(out, it)
			}
		}
		return out
	}
}

func (q *memoryQueue) size(state State) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch state {
	case StateAny:
		return q.pending.len() + len(q.claimed) + q.running.Len()
	case StateScheduled:
		return q.pending.len() + len(q.claimed)
	case StateRunning:
		return q.running.Len()
	case StateCompleted:
		return q.completed.Len()
	default:
		n := 0
		for _, it := range q.completed {
			if it.State() == state {
				n++
			}
		}
		return n
	}
}

type scheduledOrder interface {
	push(*Item)
	pop() *Item
	remove(*Item) bool
	removeID(id string) *Item
	len() int
	items() []*Item
}

type fifoOrder struct {
	q queue[*Item]
}

func (f *fifoOrder) push(it *Item) { f.q.Push(it) }

func (f *fifoOrder) pop() *Item { return f.q.Pop() }

func (f *fifoOrder) remove(it *Item) bool { return f.q.Remove(it) }

func (f *fifoOrder) removeID(id string) *Item {
	for _, it := range f.q {
		if it.ID() == id {
			f.q.Remove(it)
			return it
		}
	}
	return nil
}

func (f *fifoOrder) len() int { return f.q.Len() }

func (f *fifoOrder) items() []*Item { return f.q.Items() }

// priorityOrder is a min-heap on (priority key, arrival sequence).
type priorityOrder struct {
	entries []priorityEntry
	seq     uint64
}

type priorityEntry struct {
	item *Item
	seq  uint64
}

func (p *priorityOrder) Len() int { return len(p.entries) }

func (p *priorityOrder) Less(i, j int) bool {
	a, b := p.entries[i], p.entries[j]
	if a.item.PriorityKey() != b.item.PriorityKey() {
		return a.item.PriorityKey() < b.item.PriorityKey()
	}
	return a.seq < b.seq
}

func (p *priorityOrder) Swap(i, j int) { p.entries[i], p.entries[j] = p.entries[j], p.entries[i] }

func (p *priorityOrder) Push(x any) { p.entries = append(p.entries, x.(priorityEntry)) }

func (p *priorityOrder) Pop() any {
	old := p.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = priorityEntry{}
	p.entries = old[:n-1]
	return e
}

func (p *priorityOrder) push(it *Item) {
	p.seq++
	heap.Push(p, priorityEntry{item: it, seq: p.seq})
}

func (p *priorityOrder) pop() *Item { return heap.Pop(p).(priorityEntry).item }

func (p *priorityOrder) remove(it *Item) bool {
	for i, e := range p.entries {
		if e.item == it {
			heap.Remove(p, i)
			return true
		}
	}
	return false
}

func (p *priorityOrder) removeID(id string) *Item {
	for i, e := range p.entries {
		if e.item.ID() == id {
			heap.Remove(p, i)
			return e.item
		}
	}
	return nil
}

func (p *priorityOrder) len() int { return len(p.entries) }

func (p *priorityOrder) items() []*Item {
	sorted := &priorityOrder{entries: append([]priorityEntry(nil), p.entries...)}
	out := make([]*Item, 0, len(p.entries))
	for sorted.Len() > 0 {
		out = append(out, heap.Pop(sorted).(priorityEntry).item)
	}
	return out
}
