package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine routes work items to per-queue executors.
//
// An Engine is built once from a resolved Config and started explicitly.
// After Shutdown it can be started again; items suspended during the
// shutdown are resumed by the new executors.
type Engine struct {
	cfg       Config
	backend   Backend
	tx        TransactionManager
	metrics   Metrics
	listeners listeners
	global    *CompletionSynchronizer
	idLocks   *keyedMutex
	log       *zap.SugaredLogger

	mu         sync.RWMutex
	started    bool
	executors  map[string]*executor
	queuing    map[string]bool
	processing map[string]bool
}

type EngineOption func(*Engine)

// WithBackend replaces the default in-memory backend.
func WithBackend(b Backend) EngineOption {
	return func(e *Engine) { e.backend = b }
}

func WithTransactionManager(tm TransactionManager) EngineOption {
	return func(e *Engine) { e.tx = tm }
}

func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) { e.metrics = safeMetrics{m: m} }
}

// WithListener registers a hook called for every item reaching a terminal state.
func WithListener(l Listener) EngineOption {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		metrics:    noopMetrics{},
		global:     NewCompletionSynchronizer("global", nil),
		idLocks:    newKeyedMutex(),
		log:        zap.S().Named("engine"),
		executors:  make(map[string]*executor),
		queuing:    make(map[string]bool, len(cfg.Queues)),
		processing: make(map[string]bool, len(cfg.Queues)),
	}
	for _, o := range opts {
		o(e)
	}
	if e.backend == nil {
		e.backend = NewMemoryBackend()
	}
	for _, q := range cfg.Queues {
		e.queuing[q.ID] = q.Queuing
		e.processing[q.ID] = q.Processing
	}
	return e, nil
}

// Start builds one executor per configured queue.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	for _, q := range e.cfg.Queues {
		q.Processing = e.processing[q.ID]
		e.executors[q.ID] = newExecutor(q, e.backend, e.global, e.metrics, e.listeners)
	}
	e.started = true
	e.log.Infow("work engine started", "queues", len(e.cfg.Queues))
	return nil
}

func (e *Engine) Started() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

func (e *Engine) executor(queueID string) (*executor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.started {
		return nil, &ConfigurationError{QueueID: queueID, Reason: "cannot resolve executor", Err: ErrNotStarted}
	}
	if _, ok := e.cfg.queue(queueID); !ok {
		return nil, NewConfigurationError(queueID, "no such work queue")
	}
	return e.executors[queueID], nil
}

func (e *Engine) checkQueue(queueID string) error {
	if _, ok := e.cfg.queue(queueID); !ok {
		return NewConfigurationError(queueID, "no such work queue")
	}
	return nil
}

// targets expands AllQueues to every configured queue id.
func (e *Engine) targets(queueID string) ([]string, error) {
	if queueID == AllQueues {
		return e.QueueIDs(), nil
	}
	if err := e.checkQueue(queueID); err != nil {
		return nil, err
	}
	return []string{queueID}, nil
}

// QueueIDs returns the configured queue ids in configuration order.
func (e *Engine) QueueIDs() []string {
	ids := make([]string, 0, len(e.cfg.Queues))
	for _, q := range e.cfg.Queues {
		ids = append(ids, q.ID)
	}
	return ids
}

func (e *Engine) QueueConfig(queueID string) (QueueConfig, bool) {
	q, ok := e.cfg.queue(queueID)
	if !ok {
		return QueueConfig{}, false
	}
	e.mu.RLock()
	q.Queuing = e.queuing[queueID]
	q.Processing = e.processing[queueID]
	e.mu.RUnlock()
	return q, true
}

// CategoryQueueID resolves the queue serving a category.
func (e *Engine) CategoryQueueID(category string) string {
	return e.cfg.categoryQueueID(category)
}

func (e *Engine) QueuingEnabled(queueID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queuing[queueID]
}

func (e *Engine) ProcessingEnabled(queueID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.processing[queueID]
}

// Schedule submits the item to the queue of its category after applying policy.
//
// Items refused by the policy or sent to a queue with queuing disabled are
// canceled and nil is returned. Errors are limited to configuration problems
// and handoff refusals.
func (e *Engine) Schedule(ctx context.Context, item *Item, policy Policy) error {
	return e.schedule(ctx, item, policy, false)
}

// ScheduleAfterCommit defers Schedule until the transaction bound to ctx
// commits. Without an active transaction the item is scheduled right away.
func (e *Engine) ScheduleAfterCommit(ctx context.Context, item *Item, policy Policy) error {
	return e.schedule(ctx, item, policy, true)
}

func (e *Engine) schedule(ctx context.Context, item *Item, policy Policy, afterCommit bool) error {
	policy, err := ParsePolicy(string(policy))
	if err != nil {
		return err
	}
	queueID := e.CategoryQueueID(item.Category())
	ex, err := e.executor(queueID)
	if err != nil {
		return err
	}

	if !e.QueuingEnabled(queueID) {
		item.cancel(time.Now())
		e.log.Debugw("queuing disabled, work canceled", "queue", queueID, "work", item.ID())
		return nil
	}

	if afterCommit && e.deferUntilCommit(ctx, item, policy) {
		return nil
	}

	if !item.markScheduled(time.Now()) {
		return fmt.Errorf("schedule work %s: %w", item.ID(), ErrItemNotNew)
	}

	unlock := e.idLocks.lock(item.ID())
	defer unlock()

	switch policy {
	case PolicyEnqueue:
	case PolicyCancelScheduled:
		if old, ok := ex.removeScheduled(item.ID()); ok {
			e.log.Debugw("canceled previously scheduled work", "queue", queueID, "work", old.ID())
		}
	default:
		for _, s := range policy.conflictStates() {
			if _, found := e.backend.Find(item.ID(), s); found {
				item.cancel(time.Now())
				e.log.Debugw("work already present, canceled", "queue", queueID, "work", item.ID(), "policy", policy, "state", s)
				return nil
			}
		}
	}

	return ex.submit(ctx, item)
}

// deferUntilCommit reports whether the transaction took ownership of the item.
func (e *Engine) deferUntilCommit(ctx context.Context, item *Item, policy Policy) bool {
	if e.tx == nil {
		e.log.Warnw("no transaction manager, scheduling immediately", "work", item.ID())
		return false
	}
	tx, ok := e.tx.Transaction(ctx)
	if !ok {
		e.log.Warnw("no transaction in context, scheduling immediately", "work", item.ID())
		return false
	}

	switch tx.Status() {
	case TxStatusActive:
		err := tx.RegisterSynchronization(func(committed bool) {
			if !committed {
				item.cancel(time.Now())
				e.log.Debugw("transaction rolled back, work canceled", "work", item.ID())
				return
			}
			if err := e.schedule(context.WithoutCancel(ctx), item, policy, false); err != nil {
				e.log.Errorw("failed to schedule work after commit", "work", item.ID(), "error", err)
			}
		})
		if err != nil {
			e.log.Warnw("cannot register commit hook, scheduling immediately", "work", item.ID(), "error", err)
			return false
		}
		return true
	case TxStatusMarkedRollback:
		item.cancel(time.Now())
		e.log.Debugw("transaction marked for rollback, work canceled", "work", item.ID())
		return true
	default:
		return false
	}
}

// CancelScheduled cancels a scheduled item that no worker has taken yet.
func (e *Engine) CancelScheduled(id string) (*Item, bool, error) {
	item, ok := e.backend.Find(id, StateScheduled)
	if !ok {
		return nil, false, nil
	}
	ex, err := e.executor(e.CategoryQueueID(item.Category()))
	if err != nil {
		return nil, false, err
	}
	removed, ok := ex.removeScheduled(id)
	return removed, ok, nil
}

// Find looks an item up by id. StateAny searches scheduled, running and
// completed items in that order.
func (e *Engine) Find(id string, state State) (*Item, bool) {
	return e.backend.Find(id, state)
}

// State returns the state of the most relevant item with that id.
func (e *Engine) State(id string) (State, bool) {
	item, ok := e.backend.Find(id, StateAny)
	if !ok {
		return StateAny, false
	}
	return item.State(), true
}

func (e *Engine) ListWork(queueID string, state State) ([]*Item, error) {
	if err := e.checkQueue(queueID); err != nil {
		return nil, err
	}
	return e.backend.List(queueID, state), nil
}

// QueueSize counts the items of a queue. StateAny counts scheduled and
// running items.
func (e *Engine) QueueSize(queueID string, state State) (int, error) {
	if err := e.checkQueue(queueID); err != nil {
		return 0, err
	}
	return e.backend.Size(queueID, state), nil
}

func (e *Engine) Metrics(queueID string) (QueueMetrics, error) {
	if err := e.checkQueue(queueID); err != nil {
		return QueueMetrics{}, err
	}
	m := QueueMetrics{
		QueueID:   queueID,
		Scheduled: e.backend.Size(queueID, StateScheduled),
		Running:   e.backend.Size(queueID, StateRunning),
		Failed:    e.backend.Size(queueID, StateFailed),
		Canceled:  e.backend.Size(queueID, StateCanceled),
	}
	m.Completed = e.backend.Size(queueID, StateCompleted) - m.Failed - m.Canceled
	return m, nil
}

// AwaitCompletion blocks until no item is scheduled or running, either in one
// queue or, for "" and AllQueues, in the whole engine.
func (e *Engine) AwaitCompletion(ctx context.Context, queueID string, timeout time.Duration) (bool, error) {
	s := e.global
	if queueID != "" && queueID != AllQueues {
		ex, err := e.executor(queueID)
		if err != nil {
			return false, err
		}
		s = ex.sync
	}
	remaining := s.Await(ctx, timeout)
	if remaining <= 0 && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return remaining > 0, nil
}

// Shutdown suspends every executor and waits up to timeout for them, all
// sharing the same deadline. It returns false when an executor had to be
// interrupted.
func (e *Engine) Shutdown(ctx context.Context, timeout time.Duration) (bool, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return false, ErrNotStarted
	}
	executors := make([]*executor, 0, len(e.executors))
	for _, id := range e.QueueIDs() {
		if ex, ok := e.executors[id]; ok {
			executors = append(executors, ex)
		}
	}
	clear(e.executors)
	e.started = false
	e.mu.Unlock()

	ok := e.shutdownExecutors(ctx, executors, timeout)
	e.log.Infow("work engine stopped", "clean", ok)
	return ok, nil
}

// ShutdownQueue shuts down the executor of a single queue. The queue stays
// down until the engine is restarted: items scheduled to it meanwhile are
// canceled by the stopped executor.
func (e *Engine) ShutdownQueue(ctx context.Context, queueID string, timeout time.Duration) (bool, error) {
	ex, err := e.executor(queueID)
	if err != nil {
		return false, err
	}
	return e.shutdownExecutors(ctx, []*executor{ex}, timeout), nil
}

func (e *Engine) shutdownExecutors(ctx context.Context, executors []*executor, timeout time.Duration) bool {
	for _, ex := range executors {
		ex.shutdownAndSuspend()
	}

	deadline := time.Now().Add(timeout)
	var g errgroup.Group
	for _, ex := range executors {
		g.Go(func() error {
			if !ex.awaitTerminationOrSave(ctx, time.Until(deadline)) {
				return fmt.Errorf("queue %s: %w", ex.queueID, ErrShutdownTimeout)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warnw("shutdown incomplete", "error", err)
		return false
	}
	return true
}

// PruneCompleted removes completed items that finished before olderThan.
// A zero olderThan removes all of them.
func (e *Engine) PruneCompleted(queueID string, olderThan time.Time) (int, error) {
	ids, err := e.targets(queueID)
	if err != nil {
		return 0, err
	}
	var n int
	for _, id := range ids {
		n += e.backend.Prune(id, olderThan)
	}
	return n, nil
}

// SetQueueActive toggles queuing and processing. A nil flag is left unchanged.
func (e *Engine) SetQueueActive(queueID string, queuing, processing *bool) error {
	ids, err := e.targets(queueID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		if queuing != nil {
			e.queuing[id] = *queuing
		}
		if processing != nil {
			e.processing[id] = *processing
			if ex, ok := e.executors[id]; ok {
				ex.setProcessing(*processing)
			}
		}
		e.log.Infow("queue updated", "queue", id, "queuing", e.queuing[id], "processing", e.processing[id])
	}
	return nil
}

// keyedMutex hands out one mutex per key, dropping it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
