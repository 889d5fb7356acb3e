package works

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

const KindFail = "fail"

var ErrUnknownKind = errors.New("unknown work kind")

// Factory builds a runner from request parameters.
type Factory func(params map[string]any) (scheduler.Runner, error)

// Registry maps work kind names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in kinds:
//   - sleep: params "duration" (e.g. "2s" or milliseconds) and optional "tick"
//   - fail: params "message" and optional "delay"
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSleep, newSleepFromParams)
	r.Register(KindFail, newFailFromParams)
	return r
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

func (r *Registry) Build(kind string, params map[string]any) (scheduler.Runner, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	runner, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %q work: %w", kind, err)
	}
	return runner, nil
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// FailWork returns an error after an optional delay.
type FailWork struct {
	message string
	delay   time.Duration
}

func NewFailWork(message string, delay time.Duration) *FailWork {
	return &FailWork{message: message, delay: delay}
}

func (w *FailWork) Kind() string { return KindFail }

func (w *FailWork) Run(ctx context.Context, _ *scheduler.Item) error {
	if w.delay > 0 {
		t := time.NewTimer(w.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return errors.New(w.message)
}

func (w *FailWork) Cleanup(bool, error) {}

func newSleepFromParams(params map[string]any) (scheduler.Runner, error) {
	d, err := durationParam(params, "duration", 0)
	if err != nil {
		return nil, err
	}
	tick, err := durationParam(params, "tick", defaultTick)
	if err != nil {
		return nil, err
	}
	return NewSleepWork(d, WithTick(tick)), nil
}

func newFailFromParams(params map[string]any) (scheduler.Runner, error) {
	delay, err := durationParam(params, "delay", 0)
	if err != nil {
		return nil, err
	}
	msg := "work failed"
	if v, ok := params["message"].(string); ok && v != "" {
		msg = v
	}
	return NewFailWork(msg, delay), nil
}

// durationParam reads a duration given as a Go duration string or as a number
// of milliseconds.
func durationParam(params map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d, nil
		}
		ms, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", key, t)
		}
		return time.Duration(ms) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case time.Duration:
		return t, nil
	default:
		return 0, fmt.Errorf("invalid %s of type %T", key, v)
	}
}
