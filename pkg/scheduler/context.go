package scheduler

import "context"

type workerContextKey struct{}

// WorkerInfo identifies the executor worker a context belongs to.
type WorkerInfo struct {
	QueueID  string
	WorkerID int
}

// WithWorker marks ctx as belonging to an engine worker. The worker loop sets
// it on the context passed to Runner.Run so that work scheduled from inside a
// running item is recognized as reentrant.
func WithWorker(ctx context.Context, info WorkerInfo) context.Context {
	return context.WithValue(ctx, workerContextKey{}, info)
}

// WorkerFromContext returns the worker that owns ctx, if any.
func WorkerFromContext(ctx context.Context) (WorkerInfo, bool) {
	info, ok := ctx.Value(workerContextKey{}).(WorkerInfo)
	return info, ok
}

func IsWorkerContext(ctx context.Context) bool {
	_, ok := WorkerFromContext(ctx)
	return ok
}
