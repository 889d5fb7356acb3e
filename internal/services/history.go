package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/internal/store"
	"github.com/kubev2v/workmanager/pkg/scheduler"
)

const (
	defaultBufferSize    = 1024
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
	saveMaxTries         = 3
)

// HistoryRecorder is an engine listener that writes every terminal item to
// the history store. Records are buffered and saved in batches by a single
// goroutine so workers never wait on the database.
type HistoryRecorder struct {
	history *store.HistoryStore

	retention     time.Duration
	pruneInterval time.Duration
	flushInterval time.Duration
	batchSize     int

	records  chan models.WorkRecord
	flushReq chan chan error
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	dropped  atomic.Int64
	log      *zap.SugaredLogger
}

type RecorderOption func(*HistoryRecorder)

// WithRetention prunes history older than d every interval. A zero d keeps
// everything.
func WithRetention(d, interval time.Duration) RecorderOption {
	return func(r *HistoryRecorder) {
		r.retention = d
		r.pruneInterval = interval
	}
}

func WithFlushInterval(d time.Duration) RecorderOption {
	return func(r *HistoryRecorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

func WithBufferSize(n int) RecorderOption {
	return func(r *HistoryRecorder) {
		if n > 0 {
			r.records = make(chan models.WorkRecord, n)
		}
	}
}

func NewHistoryRecorder(history *store.HistoryStore, opts ...RecorderOption) *HistoryRecorder {
	r := &HistoryRecorder{
		history:       history,
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		records:       make(chan models.WorkRecord, defaultBufferSize),
		flushReq:      make(chan chan error),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		log:           zap.S().Named("history_recorder"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WorkCompleted implements scheduler.Listener. It never blocks: records that
// do not fit in the buffer are dropped and counted.
func (r *HistoryRecorder) WorkCompleted(queueID string, item *scheduler.Item) {
	select {
	case r.records <- models.NewWorkRecord(queueID, item):
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warnw("history buffer full, record dropped", "work", item.ID(), "dropped", n)
		}
	}
}

func (r *HistoryRecorder) Dropped() int64 { return r.dropped.Load() }

func (r *HistoryRecorder) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run(ctx)
}

// Flush saves every buffered record before returning.
func (r *HistoryRecorder) Flush(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}
	res := make(chan error, 1)
	select {
	case r.flushReq <- res:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop flushes what is buffered and waits for the writer to exit.
func (r *HistoryRecorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *HistoryRecorder) run(ctx context.Context) {
	defer close(r.done)

	flush := time.NewTicker(r.flushInterval)
	defer flush.Stop()

	var prune <-chan time.Time
	if r.retention > 0 && r.pruneInterval > 0 {
		t := time.NewTicker(r.pruneInterval)
		defer t.Stop()
		prune = t.C
	}

	batch := make([]models.WorkRecord, 0, r.batchSize)
	save := func(ctx context.Context) error {
		if len(batch) == 0 {
			return nil
		}
		err := r.save(ctx, batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
			if len(batch) >= r.batchSize {
				_ = save(ctx)
			}
		case <-flush.C:
			_ = save(ctx)
		case res := <-r.flushReq:
			batch = r.drain(batch)
			res <- save(ctx)
		case <-prune:
			r.prune(ctx)
		case <-r.stop:
			batch = r.drain(batch)
			_ = save(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			batch = r.drain(batch)
			_ = save(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *HistoryRecorder) drain(batch []models.WorkRecord) []models.WorkRecord {
	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

func (r *HistoryRecorder) save(ctx context.Context, batch []models.WorkRecord) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.history.Save(ctx, batch...)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(saveMaxTries),
	)
	if err != nil {
		r.log.Errorw("failed to save work history", "records", len(batch), "error", err)
		return err
	}
	r.log.Debugw("work history saved", "records", len(batch))
	return nil
}

func (r *HistoryRecorder) prune(ctx context.Context) {
	n, err := r.history.DeleteOlderThan(ctx, time.Now().Add(-r.retention))
	if err != nil {
		r.log.Warnw("failed to prune work history", "error", err)
		return
	}
	if n > 0 {
		r.log.Infow("work history pruned", "rows", n)
	}
}
