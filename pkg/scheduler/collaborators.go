package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TxStatus is the status of an external transaction.
type TxStatus int

const (
	TxStatusActive TxStatus = iota
	TxStatusMarkedRollback
	TxStatusCommitted
	TxStatusRolledBack
	TxStatusUnknown
)

// Transaction is the part of an external transaction the engine needs to defer
// scheduling until commit.
type Transaction interface {
	Status() TxStatus
	// RegisterSynchronization registers fn to run once the transaction ends.
	// committed is false on rollback.
	RegisterSynchronization(fn func(committed bool)) error
}

// TransactionManager returns the transaction bound to ctx, if any.
type TransactionManager interface {
	Transaction(ctx context.Context) (Transaction, bool)
}

// Metrics receives fire-and-forget counters from the engine.
type Metrics interface {
	WorkScheduled(queueID string)
	WorkRunning(queueID string, delta int)
	WorkCompleted(queueID string, state State, elapsed time.Duration)
}

// Listener is notified each time an item reaches a terminal state.
type Listener interface {
	WorkCompleted(queueID string, item *Item)
}

type ListenerFunc func(queueID string, item *Item)

func (f ListenerFunc) WorkCompleted(queueID string, item *Item) { f(queueID, item) }

type noopMetrics struct{}

func (noopMetrics) WorkScheduled(string)                       {}
func (noopMetrics) WorkRunning(string, int)                    {}
func (noopMetrics) WorkCompleted(string, State, time.Duration) {}

// safeMetrics shields the engine from a misbehaving metrics implementation.
type safeMetrics struct {
	m Metrics
}

func (s safeMetrics) guard(op string) {
	if rec := recover(); rec != nil {
		zap.S().Named("metrics").Warnw("metrics call panicked", "op", op, "panic", rec)
	}
}

func (s safeMetrics) WorkScheduled(queueID string) {
	defer s.guard("scheduled")
	s.m.WorkScheduled(queueID)
}

func (s safeMetrics) WorkRunning(queueID string, delta int) {
	defer s.guard("running")
	s.m.WorkRunning(queueID, delta)
}

func (s safeMetrics) WorkCompleted(queueID string, state State, elapsed time.Duration) {
	defer s.guard("completed")
	s.m.WorkCompleted(queueID, state, elapsed)
}

type listeners []Listener

func (ls listeners) notify(queueID string, item *Item) {
	for _, l := range ls {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					zap.S().Named("scheduler").Warnw("completion listener panicked", "queue", queueID, "work", item.ID(), "panic", rec)
				}
			}()
			l.WorkCompleted(queueID, item)
		}()
	}
}
