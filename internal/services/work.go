package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/internal/store"
	srvErrors "github.com/kubev2v/workmanager/pkg/errors"
	"github.com/kubev2v/workmanager/pkg/scheduler"
	"github.com/kubev2v/workmanager/pkg/works"
)

// WorkService exposes the engine's administrative operations and builds work
// items from requests through the kind registry.
type WorkService struct {
	engine   *scheduler.Engine
	registry *works.Registry
	store    *store.Store
	log      *zap.SugaredLogger
}

func NewWorkService(engine *scheduler.Engine, registry *works.Registry, st *store.Store) *WorkService {
	return &WorkService{
		engine:   engine,
		registry: registry,
		store:    st,
		log:      zap.S().Named("work_service"),
	}
}

type ScheduleParams struct {
	Kind        string
	ID          string
	Category    string
	PriorityKey string
	Policy      string
	// AfterCommit defers the start of the work until the request's
	// transaction commits.
	AfterCommit bool
	Params      map[string]any
}

// Schedule builds an item and hands it to the engine. Items refused by the
// policy or by a queue with queuing disabled come back CANCELED without error.
func (s *WorkService) Schedule(ctx context.Context, params ScheduleParams) (*scheduler.Item, error) {
	runner, err := s.registry.Build(params.Kind, params.Params)
	if err != nil {
		if errors.Is(err, works.ErrUnknownKind) {
			return nil, srvErrors.NewInvalidArgumentError("kind", err)
		}
		return nil, srvErrors.NewInvalidArgumentError("params", err)
	}

	policy, err := scheduler.ParsePolicy(params.Policy)
	if err != nil {
		return nil, srvErrors.NewInvalidArgumentError("policy", err)
	}

	var opts []scheduler.ItemOption
	if params.ID != "" {
		opts = append(opts, scheduler.WithID(params.ID))
	}
	if params.Category != "" {
		opts = append(opts, scheduler.WithCategory(params.Category))
	}
	if params.PriorityKey != "" {
		opts = append(opts, scheduler.WithPriorityKey(params.PriorityKey))
	}
	item := scheduler.NewItem(runner, opts...)

	if !params.AfterCommit {
		if err := s.engine.Schedule(ctx, item, policy); err != nil {
			return nil, err
		}
		return item, nil
	}

	err = s.store.Tx().WithinTx(ctx, func(ctx context.Context) error {
		return s.engine.ScheduleAfterCommit(ctx, item, policy)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *WorkService) Get(id string) (*scheduler.Item, error) {
	item, ok := s.engine.Find(id, scheduler.StateAny)
	if !ok {
		return nil, srvErrors.NewWorkNotFoundError(id)
	}
	return item, nil
}

// Cancel removes a scheduled item that no worker has taken yet.
func (s *WorkService) Cancel(id string) (*scheduler.Item, error) {
	item, ok, err := s.engine.CancelScheduled(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return item, nil
	}

	state, found := s.engine.State(id)
	if !found {
		return nil, srvErrors.NewWorkNotFoundError(id)
	}
	return nil, srvErrors.NewConflictError("work %q is %s and cannot be canceled", id, state)
}

func (s *WorkService) ListQueues() ([]models.QueueInfo, error) {
	ids := s.engine.QueueIDs()
	infos := make([]models.QueueInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.GetQueue(id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *WorkService) GetQueue(id string) (models.QueueInfo, error) {
	qc, ok := s.engine.QueueConfig(id)
	if !ok {
		return models.QueueInfo{}, srvErrors.NewQueueNotFoundError(id)
	}
	m, err := s.engine.Metrics(id)
	if err != nil {
		return models.QueueInfo{}, err
	}
	return models.QueueInfo{
		ID:             qc.ID,
		MaxConcurrency: qc.MaxConcurrency,
		Capacity:       qc.Capacity,
		Queuing:        qc.Queuing,
		Processing:     qc.Processing,
		Metrics:        m,
	}, nil
}

// UpdateQueue toggles queuing and processing on one queue or, with "*", on
// all of them, and persists the new settings.
func (s *WorkService) UpdateQueue(ctx context.Context, id string, queuing, processing *bool) ([]models.QueueInfo, error) {
	if err := s.checkQueue(id); err != nil {
		return nil, err
	}
	if err := s.engine.SetQueueActive(id, queuing, processing); err != nil {
		return nil, err
	}

	ids := []string{id}
	if id == scheduler.AllQueues {
		ids = s.engine.QueueIDs()
	}

	infos := make([]models.QueueInfo, 0, len(ids))
	err := s.store.Tx().WithinTx(ctx, func(ctx context.Context) error {
		for _, qid := range ids {
			info, err := s.GetQueue(qid)
			if err != nil {
				return err
			}
			err = s.store.QueueSettings().Save(ctx, models.QueueSettings{
				QueueID:    qid,
				Queuing:    info.Queuing,
				Processing: info.Processing,
			})
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// RestoreQueueSettings applies the persisted queue toggles to the engine.
// Settings of queues that are no longer configured are dropped.
func (s *WorkService) RestoreQueueSettings(ctx context.Context) error {
	all, err := s.store.QueueSettings().List(ctx)
	if err != nil {
		return err
	}
	for _, qs := range all {
		if _, ok := s.engine.QueueConfig(qs.QueueID); !ok {
			s.log.Infow("dropping settings of unknown queue", "queue", qs.QueueID)
			if err := s.store.QueueSettings().Delete(ctx, qs.QueueID); err != nil {
				return err
			}
			continue
		}
		if err := s.engine.SetQueueActive(qs.QueueID, &qs.Queuing, &qs.Processing); err != nil {
			return err
		}
	}
	return nil
}

func (s *WorkService) ListWork(queueID string, state string) ([]*scheduler.Item, error) {
	if err := s.checkQueue(queueID); err != nil {
		return nil, err
	}
	st, err := scheduler.ParseState(state)
	if err != nil {
		return nil, srvErrors.NewInvalidArgumentError("state", err)
	}
	return s.engine.ListWork(queueID, st)
}

// PruneCompleted drops completed items from the engine. The history rows are
// kept.
func (s *WorkService) PruneCompleted(queueID string, olderThan time.Time) (int, error) {
	if err := s.checkQueue(queueID); err != nil {
		return 0, err
	}
	return s.engine.PruneCompleted(queueID, olderThan)
}

// Await waits until the queue ("" or "*" for all) has nothing scheduled or
// running. It returns false on timeout.
func (s *WorkService) Await(ctx context.Context, queueID string, timeout time.Duration) (bool, error) {
	if queueID != "" {
		if err := s.checkQueue(queueID); err != nil {
			return false, err
		}
	}
	ok, err := s.engine.AwaitCompletion(ctx, queueID, timeout)
	if err != nil && ctx.Err() == nil {
		return false, err
	}
	return ok, nil
}

type HistoryParams struct {
	Queues  []string
	States  []string
	Kinds   []string
	WorkIDs []string
	Sort    []store.SortParam
	Limit   uint64
	Offset  uint64
}

type HistoryResult struct {
	Records []models.WorkRecord
	Total   int
}

func (s *WorkService) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	for _, st := range params.States {
		if _, err := scheduler.ParseState(st); err != nil {
			return nil, srvErrors.NewInvalidArgumentError("state", err)
		}
	}
	for _, sp := range params.Sort {
		if !store.IsSortField(sp.Field) {
			return nil, srvErrors.NewInvalidArgumentError("sort", errors.New("unknown field "+sp.Field))
		}
	}

	filters := []store.ListOption{
		store.ByQueues(params.Queues...),
		store.ByStates(params.States...),
		store.ByKinds(params.Kinds...),
		store.ByWorkIDs(params.WorkIDs...),
	}

	opts := append([]store.ListOption{}, filters...)
	if len(params.Sort) > 0 {
		opts = append(opts, store.WithSort(params.Sort))
	} else {
		opts = append(opts, store.WithDefaultSort())
	}
	if params.Limit > 0 {
		opts = append(opts, store.WithLimit(params.Limit))
	}
	if params.Offset > 0 {
		opts = append(opts, store.WithOffset(params.Offset))
	}

	records, err := s.store.History().List(ctx, opts...)
	if err != nil {
		return nil, err
	}
	total, err := s.store.History().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Records: records, Total: total}, nil
}

func (s *WorkService) checkQueue(id string) error {
	if id == scheduler.AllQueues {
		return nil
	}
	if _, ok := s.engine.QueueConfig(id); !ok {
		return srvErrors.NewQueueNotFoundError(id)
	}
	return nil
}
