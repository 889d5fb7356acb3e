package scheduler

import (
	"fmt"
)

type queue[T comparable] []T

func (wq *queue[T]) Len() int { return len(*wq) }

func (wq *queue[T]) Pop() T {
	old := *wq
	x := old[0]
	var zero T
	old[0] = zero
	*wq = old[1:]
	return x
}

func (wq *queue[T]) Push(t T) {
	*wq = append(*wq, t)
}

// Remove deletes the first element equal to t, keeping the order of the others.
func (wq *queue[T]) Remove(t T) bool {
	old := *wq
	for i, x := range old {
		if x == t {
			*wq = append(old[:i:i], old[i+1:]...)
			return true
		}
	}
	return false
}

func (wq *queue[T]) Items() []T {
	out := make([]T, len(*wq))
	copy(out, *wq)
	return out
}

// State is the lifecycle state of a work item.
type State string

const (
	// StateScheduled - waiting in a queue for a worker
	StateScheduled State = "scheduled"
	// StateRunning - a worker is executing the item
	StateRunning State = "running"
	// StateCompleted - the item returned without error
	StateCompleted State = "completed"
	// StateFailed - the item returned an error or panicked
	StateFailed State = "failed"
	// StateCanceled - the item was removed before running, refused by a policy or interrupted
	StateCanceled State = "canceled"
)

// StateAny is used by lookups to mean "scheduled, running or completed".
const StateAny State = ""

func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

func (s State) Value() string {
	return string(s)
}

func ParseState(s string) (State, error) {
	switch State(s) {
	case StateAny, StateScheduled, StateRunning, StateCompleted, StateFailed, StateCanceled:
		return State(s), nil
	default:
		return "", fmt.Errorf("invalid work state: %s", s)
	}
}

// Progress is the cooperative progress indicator an item updates while it runs.
type Progress struct {
	Indeterminate bool
	Percent       float64
}

var ProgressIndeterminate = Progress{Indeterminate: true}

func ProgressPercent(p float64) Progress {
	switch {
	case p < 0:
		p = 0
	case p > 100:
		p = 100
	}
	return Progress{Percent: p}
}

func (p Progress) String() string {
	if p.Indeterminate {
		return "?"
	}
	return fmt.Sprintf("%.1f%%", p.Percent)
}

// Policy decides what happens when a newly scheduled item conflicts by id
// with an item already known to the engine.
type Policy string

const (
	// PolicyEnqueue schedules the item unconditionally.
	PolicyEnqueue Policy = "enqueue"
	// PolicyCancelScheduled cancels a scheduled item with the same id, then enqueues.
	PolicyCancelScheduled Policy = "cancel_scheduled"
	// PolicyIfNotScheduled refuses the item if one with the same id is scheduled.
	PolicyIfNotScheduled Policy = "if_not_scheduled"
	// PolicyIfNotRunning refuses the item if one with the same id is running.
	PolicyIfNotRunning Policy = "if_not_running"
	// PolicyIfNotRunningOrScheduled refuses the item if one with the same id is scheduled or running.
	PolicyIfNotRunningOrScheduled Policy = "if_not_running_or_scheduled"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyEnqueue, nil
	case PolicyEnqueue, PolicyCancelScheduled, PolicyIfNotScheduled, PolicyIfNotRunning, PolicyIfNotRunningOrScheduled:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("invalid scheduling policy: %s", s)
	}
}

// conflictStates returns the states in which an existing item with the same id
// makes the policy refuse a new item.
func (p Policy) conflictStates() []State {
	switch p {
	case PolicyIfNotScheduled:
		return []State{StateScheduled}
	case PolicyIfNotRunning:
		return []State{StateRunning}
	case PolicyIfNotRunningOrScheduled:
		return []State{StateScheduled, StateRunning}
	}
	return nil
}
