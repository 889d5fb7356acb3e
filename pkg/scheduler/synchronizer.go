package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CompletionSynchronizer counts scheduled-or-running items and lets callers
// block until the count drops to zero.
//
// A per-queue synchronizer forwards every signal to its parent, so the global
// instance counts the items of all queues.
type CompletionSynchronizer struct {
	name   string
	parent *CompletionSynchronizer

	mu    sync.Mutex
	count int64
	// idle is closed while count == 0 and replaced when the count leaves zero.
	idle chan struct{}
}

func NewCompletionSynchronizer(name string, parent *CompletionSynchronizer) *CompletionSynchronizer {
	idle := make(chan struct{})
	close(idle)
	return &CompletionSynchronizer{
		name:   name,
		parent: parent,
		idle:   idle,
	}
}

func (s *CompletionSynchronizer) SignalSchedule() {
	s.mu.Lock()
	s.count++
	if s.count == 1 {
		s.idle = make(chan struct{})
	}
	s.mu.Unlock()

	if s.parent != nil {
		s.parent.SignalSchedule()
	}
}

func (s *CompletionSynchronizer) SignalCompletion() {
	s.SignalCompletions(1)
}

// SignalCompletions releases n items at once, e.g. after draining a queue.
func (s *CompletionSynchronizer) SignalCompletions(n int) {
	if n <= 0 {
		return
	}

	s.mu.Lock()
	released := int64(n)
	if released > s.count {
		zap.S().Named("synchronizer").Errorw("completion signaled without matching schedule", "synchronizer", s.name, "count", s.count, "released", n)
		released = s.count
	}
	s.count -= released
	if s.count == 0 && released > 0 {
		close(s.idle)
	}
	s.mu.Unlock()

	if s.parent != nil && released > 0 {
		s.parent.SignalCompletions(int(released))
	}
}

func (s *CompletionSynchronizer) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Await blocks until the count reaches zero, the timeout elapses or ctx is done.
// It returns the unused part of the timeout; a value <= 0 means the count did
// not reach zero in time.
func (s *CompletionSynchronizer) Await(ctx context.Context, timeout time.Duration) time.Duration {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		if timeout <= 0 {
			// nothing to wait for: report a minimal positive remainder
			return time.Nanosecond
		}
		return timeout
	}
	idle := s.idle
	s.mu.Unlock()

	if timeout <= 0 {
		return 0
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}
		return remaining
	case <-timer.C:
		return 0
	case <-ctx.Done():
		return 0
	}
}
