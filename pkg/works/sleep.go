package works

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

const (
	KindSleep = "sleep"

	defaultTick = 100 * time.Millisecond
)

// SleepState is the resume state saved by a suspended SleepWork.
type SleepState struct {
	Total     time.Duration `json:"total"`
	Remaining time.Duration `json:"remaining"`
}

// SleepWork sleeps for a fixed duration in ticks. It reports percent progress
// and, when asked to suspend, saves the remaining duration so that a new
// SleepWork can finish the job.
type SleepWork struct {
	total     time.Duration
	remaining time.Duration
	tick      time.Duration
}

type SleepOption func(*SleepWork)

// WithTick sets the interval between progress updates and suspend checks.
func WithTick(d time.Duration) SleepOption {
	return func(w *SleepWork) {
		if d > 0 {
			w.tick = d
		}
	}
}

func NewSleepWork(d time.Duration, opts ...SleepOption) *SleepWork {
	w := &SleepWork{total: max(d, 0), remaining: max(d, 0), tick: defaultTick}
	for _, o := range opts {
		o(w)
	}
	return w
}

// NewSleepWorkFromResume rebuilds a SleepWork from the state acknowledged by a
// suspended run.
func NewSleepWorkFromResume(state any, opts ...SleepOption) (*SleepWork, error) {
	var s SleepState
	switch v := state.(type) {
	case SleepState:
		s = v
	case *SleepState:
		if v == nil {
			return nil, fmt.Errorf("empty sleep resume state")
		}
		s = *v
	default:
		return nil, fmt.Errorf("unexpected sleep resume state %T", state)
	}

	w := NewSleepWork(s.Total, opts...)
	w.remaining = min(max(s.Remaining, 0), w.total)
	return w, nil
}

func (w *SleepWork) Kind() string { return KindSleep }

func (w *SleepWork) Remaining() time.Duration { return w.remaining }

func (w *SleepWork) Run(ctx context.Context, item *scheduler.Item) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	item.SetProgress(w.progress())
	for w.remaining > 0 {
		if item.SuspendRequested() {
			item.AcknowledgeSuspend(SleepState{Total: w.total, Remaining: w.remaining})
			zap.S().Named("sleep_work").Debugw("suspended", "id", item.ID(), "remaining", w.remaining)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		w.remaining = max(w.remaining-w.tick, 0)
		item.SetProgress(w.progress())
	}
	return nil
}

func (w *SleepWork) Cleanup(ok bool, err error) {
	if !ok {
		zap.S().Named("sleep_work").Debugw("sleep ended early", "remaining", w.remaining, "error", err)
	}
}

func (w *SleepWork) progress() scheduler.Progress {
	if w.total == 0 {
		return scheduler.ProgressPercent(100)
	}
	return scheduler.ProgressPercent(100 * float64(w.total-w.remaining) / float64(w.total))
}
