package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

func sleepRunner(d time.Duration) scheduler.RunnerFunc {
	return func(ctx context.Context, item *scheduler.Item) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// blockingRunner runs until released or interrupted. It never acknowledges
// suspension.
type blockingRunner struct {
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	cleanups atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, item *scheduler.Item) error {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *blockingRunner) Cleanup(bool, error) { r.cleanups.Add(1) }

type recordingRunner struct {
	run      func(ctx context.Context, item *scheduler.Item) error
	mu       sync.Mutex
	cleanups []error
	oks      []bool
}

func (r *recordingRunner) Run(ctx context.Context, item *scheduler.Item) error {
	return r.run(ctx, item)
}

func (r *recordingRunner) Cleanup(ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oks = append(r.oks, ok)
	r.cleanups = append(r.cleanups, err)
}

type fakeTx struct {
	status scheduler.TxStatus
	hooks  []func(committed bool)
}

func (t *fakeTx) Status() scheduler.TxStatus { return t.status }

func (t *fakeTx) RegisterSynchronization(fn func(bool)) error {
	t.hooks = append(t.hooks, fn)
	return nil
}

func (t *fakeTx) end(committed bool) {
	for _, h := range t.hooks {
		h(committed)
	}
}

type fakeTxManager struct {
	tx *fakeTx
}

func (m *fakeTxManager) Transaction(context.Context) (scheduler.Transaction, bool) {
	if m.tx == nil {
		return nil, false
	}
	return m.tx, true
}

type countingMetrics struct {
	scheduled atomic.Int32
	running   atomic.Int32
	completed atomic.Int32
}

func (m *countingMetrics) WorkScheduled(string)        { m.scheduled.Add(1) }
func (m *countingMetrics) WorkRunning(_ string, d int) { m.running.Add(int32(d)) }
func (m *countingMetrics) WorkCompleted(string, scheduler.State, time.Duration) {
	m.completed.Add(1)
}

type panickingMetrics struct{}

func (panickingMetrics) WorkScheduled(string)                                 { panic("boom") }
func (panickingMetrics) WorkRunning(string, int)                              { panic("boom") }
func (panickingMetrics) WorkCompleted(string, scheduler.State, time.Duration) { panic("boom") }

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		cfg    scheduler.Config
		engine *scheduler.Engine
	)

	newEngine := func(opts ...scheduler.EngineOption) *scheduler.Engine {
		e, err := scheduler.NewEngine(cfg, opts...)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Start(ctx)).To(Succeed())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = scheduler.Config{
			Queues: []scheduler.QueueConfig{
				scheduler.NewQueueConfig(scheduler.DefaultQueueID, 2, 0),
				scheduler.NewQueueConfig("q1", 2, 5),
			},
			Categories: map[string]string{"reports": "q1"},
		}
		engine = nil
	})

	AfterEach(func() {
		if engine != nil && engine.Started() {
			_, _ = engine.Shutdown(ctx, time.Second)
		}
	})

	Describe("configuration", func() {
		It("should reject a configuration without the default queue", func() {
			cfg.Queues = cfg.Queues[1:]
			_, err := scheduler.NewEngine(cfg)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
		})

		It("should reject categories mapped to unknown queues", func() {
			cfg.Categories["broken"] = "nope"
			_, err := scheduler.NewEngine(cfg)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
		})

		It("should refuse to schedule before start", func() {
			e, err := scheduler.NewEngine(cfg)
			Expect(err).NotTo(HaveOccurred())

			err = e.Schedule(ctx, newTestItem("1"), scheduler.PolicyEnqueue)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
			Expect(err).To(MatchError(scheduler.ErrNotStarted))
		})

		It("should refuse a second start", func() {
			engine = newEngine()
			Expect(engine.Start(ctx)).To(MatchError(scheduler.ErrAlreadyStarted))
		})

		It("should resolve categories to queues", func() {
			engine = newEngine()
			Expect(engine.CategoryQueueID("reports")).To(Equal("q1"))
			Expect(engine.CategoryQueueID("anything-else")).To(Equal(scheduler.DefaultQueueID))
		})

		It("should report unknown queues", func() {
			engine = newEngine()
			_, err := engine.ListWork("nope", scheduler.StateAny)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
			_, err = engine.QueueSize("nope", scheduler.StateAny)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
			_, err = engine.AwaitCompletion(ctx, "nope", time.Millisecond)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("execution", func() {
		// Given queue q1 with two workers and capacity 5
		// When five 50ms items are scheduled
		// Then at most two run at a time and all five complete
		It("should run items with bounded concurrency", func() {
			engine = newEngine()

			var current, peak atomic.Int32
			runner := scheduler.RunnerFunc(func(ctx context.Context, item *scheduler.Item) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				defer current.Add(-1)
				return sleepRunner(50*time.Millisecond)(ctx, item)
			})

			stop := make(chan struct{})
			var maxSeen atomic.Int32
			go func() {
				for {
					select {
					case <-stop:
						return
					default:
					}
					n, _ := engine.QueueSize("q1", scheduler.StateRunning)
					if int32(n) > maxSeen.Load() {
						maxSeen.Store(int32(n))
					}
					time.Sleep(time.Millisecond)
				}
			}()
			defer close(stop)

			for i := range 5 {
				item := scheduler.NewItem(runner, scheduler.WithCategory("reports"), scheduler.WithID(fmt.Sprintf("r-%d", i)))
				Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			}

			Expect(engine.AwaitCompletion(ctx, "q1", 2*time.Second)).To(BeTrue())
			Expect(engine.QueueSize("q1", scheduler.StateCompleted)).To(Equal(5))
			Expect(peak.Load()).To(BeNumerically("<=", 2))
			Expect(maxSeen.Load()).To(BeNumerically("<=", 2))
		})

		It("should record the lifecycle on the item", func() {
			engine = newEngine()

			var observed scheduler.State
			item := scheduler.NewItem(scheduler.RunnerFunc(func(ctx context.Context, item *scheduler.Item) error {
				observed = item.State()
				item.SetProgress(scheduler.ProgressPercent(50))
				return nil
			}))
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())

			Eventually(item.Done(), time.Second).Should(BeClosed())
			Expect(observed).To(Equal(scheduler.StateRunning))
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
			Expect(item.Progress()).To(Equal(scheduler.ProgressPercent(100)))
			Expect(item.SchedulingTime()).NotTo(BeZero())
			Expect(item.StartTime()).NotTo(BeTemporally("<", item.SchedulingTime()))
			Expect(item.CompletionTime()).NotTo(BeTemporally("<", item.StartTime()))

			// terminal items are immutable
			item.SetProgress(scheduler.ProgressPercent(10))
			Expect(item.Progress()).To(Equal(scheduler.ProgressPercent(100)))
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(MatchError(scheduler.ErrItemNotNew))
		})

		It("should mark failing items FAILED and keep the pool alive", func() {
			engine = newEngine()

			failing := &recordingRunner{run: func(context.Context, *scheduler.Item) error {
				return errors.New("disk full")
			}}
			panicking := &recordingRunner{run: func(context.Context, *scheduler.Item) error {
				panic("nil map")
			}}

			bad := scheduler.NewItem(failing)
			worse := scheduler.NewItem(panicking)
			good := newTestItem("good")
			for _, it := range []*scheduler.Item{bad, worse, good} {
				Expect(engine.Schedule(ctx, it, scheduler.PolicyEnqueue)).To(Succeed())
			}
			Expect(engine.AwaitCompletion(ctx, "", 2*time.Second)).To(BeTrue())

			Expect(bad.State()).To(Equal(scheduler.StateFailed))
			Expect(bad.Err()).To(MatchError("disk full"))
			Expect(worse.State()).To(Equal(scheduler.StateFailed))
			Expect(worse.Err()).To(MatchError(ContainSubstring("worker panicked")))
			Expect(good.State()).To(Equal(scheduler.StateCompleted))

			Expect(failing.oks).To(Equal([]bool{false}))
			Expect(panicking.oks).To(Equal([]bool{false}))
			Expect(panicking.cleanups[0]).To(MatchError(ContainSubstring("nil map")))

			m, err := engine.Metrics(scheduler.DefaultQueueID)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Failed).To(Equal(2))
			Expect(m.Completed).To(Equal(1))
		})

		It("should let a running item schedule work without blocking", func() {
			cfg.Queues[1] = scheduler.NewQueueConfig("q1", 1, 1)
			engine = newEngine()

			var children []*scheduler.Item
			parent := scheduler.NewItem(scheduler.RunnerFunc(func(ctx context.Context, item *scheduler.Item) error {
				for i := range 2 {
					child := newTestItem(fmt.Sprintf("child-%d", i), scheduler.WithCategory("reports"))
					children = append(children, child)
					if err := engine.Schedule(ctx, child, scheduler.PolicyEnqueue); err != nil {
						return err
					}
				}
				return nil
			}), scheduler.WithCategory("reports"))

			Expect(engine.Schedule(ctx, parent, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, "q1", 2*time.Second)).To(BeTrue())
			Expect(parent.State()).To(Equal(scheduler.StateCompleted))
			Expect(children).To(HaveLen(2))
			Expect(engine.QueueSize("q1", scheduler.StateCompleted)).To(Equal(3))
		})

		It("should report metrics and survive a broken metrics collaborator", func() {
			metrics := &countingMetrics{}
			engine = newEngine(scheduler.WithMetrics(metrics))
			Expect(engine.Schedule(ctx, newTestItem("1"), scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
			Eventually(metrics.completed.Load).Should(BeEquivalentTo(1))
			Expect(metrics.scheduled.Load()).To(BeEquivalentTo(1))
			Expect(metrics.running.Load()).To(BeZero())

			Expect(engine.Shutdown(ctx, time.Second)).To(BeTrue())
			engine = newEngine(scheduler.WithMetrics(panickingMetrics{}))
			item := newTestItem("2")
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(item.Done(), time.Second).Should(BeClosed())
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
		})

		It("should notify listeners of terminal items", func() {
			var mu sync.Mutex
			seen := map[string]scheduler.State{}
			engine = newEngine(scheduler.WithListener(scheduler.ListenerFunc(func(queueID string, item *scheduler.Item) {
				mu.Lock()
				defer mu.Unlock()
				seen[item.ID()] = item.State()
			})))

			Expect(engine.Schedule(ctx, newTestItem("ok"), scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())

			Eventually(func() map[string]scheduler.State {
				mu.Lock()
				defer mu.Unlock()
				return maps(seen)
			}).Should(HaveKeyWithValue("ok", scheduler.StateCompleted))
		})
	})

	Describe("policies", func() {
		BeforeEach(func() {
			// zero workers keep everything scheduled
			cfg.Queues[0] = scheduler.NewQueueConfig(scheduler.DefaultQueueID, 0, 0)
		})

		// Given job-42 scheduled on a queue that never runs anything
		// When another job-42 is scheduled with IF_NOT_SCHEDULED
		// Then the second one is canceled and never tracked
		It("should refuse duplicates with IF_NOT_SCHEDULED", func() {
			engine = newEngine()

			first := newTestItem("job-42")
			second := newTestItem("job-42")
			Expect(engine.Schedule(ctx, first, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.Schedule(ctx, second, scheduler.PolicyIfNotScheduled)).To(Succeed())

			Expect(second.State()).To(Equal(scheduler.StateCanceled))
			Expect(first.State()).To(Equal(scheduler.StateScheduled))

			found, ok := engine.Find("job-42", scheduler.StateAny)
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(first))
			items, err := engine.ListWork(scheduler.DefaultQueueID, scheduler.StateAny)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})

		It("should accept IF_NOT_RUNNING when the duplicate is only scheduled", func() {
			engine = newEngine()

			Expect(engine.Schedule(ctx, newTestItem("job-7"), scheduler.PolicyEnqueue)).To(Succeed())
			second := newTestItem("job-7")
			Expect(engine.Schedule(ctx, second, scheduler.PolicyIfNotRunning)).To(Succeed())
			Expect(second.State()).To(Equal(scheduler.StateScheduled))

			third := newTestItem("job-7")
			Expect(engine.Schedule(ctx, third, scheduler.PolicyIfNotRunningOrScheduled)).To(Succeed())
			Expect(third.State()).To(Equal(scheduler.StateCanceled))
		})

		It("should refuse IF_NOT_RUNNING while the duplicate runs", func() {
			cfg.Queues[0] = scheduler.NewQueueConfig(scheduler.DefaultQueueID, 1, 0)
			engine = newEngine()

			runner := newBlockingRunner()
			running := scheduler.NewItem(runner, scheduler.WithID("job-9"))
			Expect(engine.Schedule(ctx, running, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(runner.started, time.Second).Should(BeClosed())

			dup := newTestItem("job-9")
			Expect(engine.Schedule(ctx, dup, scheduler.PolicyIfNotRunning)).To(Succeed())
			Expect(dup.State()).To(Equal(scheduler.StateCanceled))

			close(runner.release)
			Eventually(running.Done(), time.Second).Should(BeClosed())
		})

		// Given X scheduled and not running
		// When X is scheduled again with CANCEL_SCHEDULED
		// Then the first item is canceled and only the new one runs
		It("should replace scheduled items with CANCEL_SCHEDULED", func() {
			engine = newEngine()

			first := newTestItem("X")
			replacement := newTestItem("X")
			Expect(engine.Schedule(ctx, first, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.Schedule(ctx, replacement, scheduler.PolicyCancelScheduled)).To(Succeed())

			Expect(first.State()).To(Equal(scheduler.StateCanceled))
			Expect(replacement.State()).To(Equal(scheduler.StateScheduled))
			Expect(engine.QueueSize(scheduler.DefaultQueueID, scheduler.StateScheduled)).To(Equal(1))

			Expect(engine.ShutdownQueue(ctx, scheduler.DefaultQueueID, time.Second)).To(BeTrue())
			Expect(replacement.State()).To(Equal(scheduler.StateCanceled))
		})

		It("should keep a single survivor under concurrent CANCEL_SCHEDULED", func() {
			engine = newEngine()

			items := make([]*scheduler.Item, 20)
			var wg sync.WaitGroup
			for i := range items {
				items[i] = newTestItem("X")
				wg.Add(1)
				go func(it *scheduler.Item) {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(engine.Schedule(ctx, it, scheduler.PolicyCancelScheduled)).To(Succeed())
				}(items[i])
			}
			wg.Wait()

			Expect(engine.QueueSize(scheduler.DefaultQueueID, scheduler.StateScheduled)).To(Equal(1))
			var canceled int
			for _, it := range items {
				if it.State() == scheduler.StateCanceled {
					canceled++
				}
			}
			Expect(canceled).To(Equal(len(items) - 1))
		})

		It("should reject unknown policies", func() {
			engine = newEngine()
			err := engine.Schedule(ctx, newTestItem("1"), scheduler.Policy("whenever"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("queue toggles", func() {
		It("should cancel items sent to a queue with queuing disabled", func() {
			engine = newEngine()
			Expect(engine.SetQueueActive("q1", ptr(false), nil)).To(Succeed())

			item := newTestItem("1", scheduler.WithCategory("reports"))
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(item.State()).To(Equal(scheduler.StateCanceled))
			_, ok := engine.Find("1", scheduler.StateAny)
			Expect(ok).To(BeFalse())
		})

		It("should hold items while processing is disabled", func() {
			engine = newEngine()
			Expect(engine.SetQueueActive(scheduler.AllQueues, nil, ptr(false))).To(Succeed())

			item := newTestItem("1")
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, scheduler.DefaultQueueID, 150*time.Millisecond)).To(BeFalse())
			Expect(item.State()).To(Equal(scheduler.StateScheduled))

			Expect(engine.SetQueueActive(scheduler.DefaultQueueID, nil, ptr(true))).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, scheduler.DefaultQueueID, time.Second)).To(BeTrue())
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
		})

		It("should reject unknown queue targets", func() {
			engine = newEngine()
			err := engine.SetQueueActive("nope", ptr(true), nil)
			Expect(scheduler.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("cancellation and pruning", func() {
		It("should cancel a scheduled item by id", func() {
			cfg.Queues[0] = scheduler.NewQueueConfig(scheduler.DefaultQueueID, 0, 0)
			engine = newEngine()

			item := newTestItem("1")
			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())

			removed, ok, err := engine.CancelScheduled("1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(removed).To(BeIdenticalTo(item))
			Expect(item.State()).To(Equal(scheduler.StateCanceled))
			Expect(engine.AwaitCompletion(ctx, scheduler.DefaultQueueID, 10*time.Millisecond)).To(BeTrue())
		})

		It("should prune completed items of every queue", func() {
			engine = newEngine()
			Expect(engine.Schedule(ctx, newTestItem("1"), scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.Schedule(ctx, newTestItem("2", scheduler.WithCategory("reports")), scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())

			Expect(engine.PruneCompleted(scheduler.AllQueues, time.Now().Add(-time.Hour))).To(BeZero())
			Expect(engine.PruneCompleted(scheduler.AllQueues, time.Time{})).To(Equal(2))
			Expect(engine.QueueSize("q1", scheduler.StateCompleted)).To(BeZero())
		})
	})

	Describe("shutdown", func() {
		// Given 2 running items that never acknowledge suspension and 3 scheduled items
		// When the engine is shut down with a short timeout
		// Then the scheduled items are canceled and the running ones end canceled
		It("should not lose any item", func() {
			cfg.Queues[0] = scheduler.NewQueueConfig(scheduler.DefaultQueueID, 2, 0)
			engine = newEngine()

			var all []*scheduler.Item
			var runners []*blockingRunner
			for i := range 5 {
				r := newBlockingRunner()
				runners = append(runners, r)
				it := scheduler.NewItem(r, scheduler.WithID(fmt.Sprint(i)))
				all = append(all, it)
				Expect(engine.Schedule(ctx, it, scheduler.PolicyEnqueue)).To(Succeed())
			}
			Eventually(func() (int, error) {
				return engine.QueueSize(scheduler.DefaultQueueID, scheduler.StateRunning)
			}).Should(Equal(2))

			ok, err := engine.Shutdown(ctx, 100*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			for _, it := range all {
				Eventually(it.Done(), time.Second).Should(BeClosed())
				Expect(it.State()).To(Equal(scheduler.StateCanceled))
			}
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
			Expect(engine.QueueSize(scheduler.DefaultQueueID, scheduler.StateAny)).To(BeZero())
			Expect(engine.QueueSize(scheduler.DefaultQueueID, scheduler.StateCompleted)).To(Equal(5))

			var cleanups int32
			for _, r := range runners {
				cleanups += r.cleanups.Load()
			}
			Expect(cleanups).To(BeEquivalentTo(2))
		})

		// Given a running item that checkpoints when asked to suspend
		// When the engine is shut down and started again
		// Then the item goes back to scheduled and resumes from its checkpoint
		It("should suspend and resume cooperative items", func() {
			engine = newEngine()

			runs := make(chan any, 2)
			item := scheduler.NewItem(scheduler.RunnerFunc(func(ctx context.Context, item *scheduler.Item) error {
				runs <- item.ResumeState()
				if item.ResumeState() != nil {
					return nil
				}
				for !item.SuspendRequested() {
					time.Sleep(5 * time.Millisecond)
				}
				item.AcknowledgeSuspend("checkpoint")
				return nil
			}), scheduler.WithID("resumable"))

			Expect(engine.Schedule(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(runs, time.Second).Should(Receive(BeNil()))

			Expect(engine.Shutdown(ctx, time.Second)).To(BeTrue())
			Expect(item.State()).To(Equal(scheduler.StateScheduled))
			Expect(item.Suspended()).To(BeTrue())
			Expect(engine.AwaitCompletion(ctx, "", 10*time.Millisecond)).To(BeTrue())

			Expect(engine.Start(ctx)).To(Succeed())
			Eventually(runs, time.Second).Should(Receive(Equal("checkpoint")))
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
		})

		It("should cancel work scheduled after a queue is shut down", func() {
			var seen []string
			var mu sync.Mutex
			engine = newEngine(scheduler.WithListener(scheduler.ListenerFunc(func(queueID string, item *scheduler.Item) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, queueID+"/"+item.ID())
			})))
			Expect(engine.ShutdownQueue(ctx, "q1", time.Second)).To(BeTrue())

			late := newTestItem("1", scheduler.WithCategory("reports"))
			Expect(engine.Schedule(ctx, late, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(late.State()).To(Equal(scheduler.StateCanceled))
			Expect(engine.QueueSize("q1", scheduler.StateCompleted)).To(Equal(1))

			Expect(engine.Schedule(ctx, newTestItem("2"), scheduler.PolicyEnqueue)).To(Succeed())
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
			Expect(engine.AwaitCompletion(ctx, "q1", time.Second)).To(BeTrue())

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(ContainElements("q1/1", "default/2"))
		})

		// Given an item that ignores suspension and interruption
		// When it acknowledges suspension only after a timed out shutdown and a restart
		// Then it ends canceled, never runs again and the counters still track the new work
		It("should cancel items acknowledging suspension after the shutdown timed out", func() {
			engine = newEngine()

			ack := make(chan struct{})
			var runs atomic.Int32
			late := scheduler.NewItem(scheduler.RunnerFunc(func(ctx context.Context, item *scheduler.Item) error {
				runs.Add(1)
				<-ack
				item.AcknowledgeSuspend("too late")
				return nil
			}), scheduler.WithID("late"))
			Expect(engine.Schedule(ctx, late, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(late.State, time.Second).Should(Equal(scheduler.StateRunning))

			ok, err := engine.Shutdown(ctx, 50*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(engine.Start(ctx)).To(Succeed())

			blocker := newBlockingRunner()
			other := scheduler.NewItem(blocker, scheduler.WithID("other"))
			Expect(engine.Schedule(ctx, other, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(blocker.started, time.Second).Should(BeClosed())

			close(ack)
			Eventually(late.Done(), time.Second).Should(BeClosed())
			Expect(late.State()).To(Equal(scheduler.StateCanceled))
			Expect(late.Suspended()).To(BeFalse())

			Consistently(runs.Load, 200*time.Millisecond).Should(BeEquivalentTo(1))
			Expect(engine.AwaitCompletion(ctx, "", 50*time.Millisecond)).To(BeFalse())
			Expect(engine.AwaitCompletion(ctx, scheduler.DefaultQueueID, 50*time.Millisecond)).To(BeFalse())
			Expect(other.State()).To(Equal(scheduler.StateRunning))

			close(blocker.release)
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
			Expect(other.State()).To(Equal(scheduler.StateCompleted))
		})

		// Given a full queue without consumers
		// When an external producer gives up waiting for capacity
		// Then Schedule fails, the item is canceled and the counters are rolled back
		It("should roll back a submission that could not be enqueued", func() {
			cfg.Queues[0] = scheduler.NewQueueConfig(scheduler.DefaultQueueID, 1, 1)
			metrics := &countingMetrics{}
			var notified atomic.Int32
			engine = newEngine(
				scheduler.WithMetrics(metrics),
				scheduler.WithListener(scheduler.ListenerFunc(func(string, *scheduler.Item) { notified.Add(1) })),
			)
			Expect(engine.SetQueueActive(scheduler.DefaultQueueID, nil, ptr(false))).To(Succeed())

			first := newTestItem("first")
			Expect(engine.Schedule(ctx, first, scheduler.PolicyEnqueue)).To(Succeed())

			waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
			defer cancel()
			second := newTestItem("second")
			err := engine.Schedule(waitCtx, second, scheduler.PolicyEnqueue)
			Expect(scheduler.IsSubmissionError(err)).To(BeTrue())
			Expect(err).To(MatchError(scheduler.ErrHandoffInterrupted))
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(second.State()).To(Equal(scheduler.StateCanceled))
			Expect(notified.Load()).To(BeEquivalentTo(1))
			Expect(metrics.completed.Load()).To(BeEquivalentTo(1))

			_, canceled, err := engine.CancelScheduled("first")
			Expect(err).NotTo(HaveOccurred())
			Expect(canceled).To(BeTrue())
			Expect(engine.AwaitCompletion(ctx, "", time.Second)).To(BeTrue())
		})

		It("should report shutting down a stopped engine", func() {
			e, err := scheduler.NewEngine(cfg)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.Shutdown(ctx, time.Second)
			Expect(err).To(MatchError(scheduler.ErrNotStarted))
		})
	})

	Describe("ScheduleAfterCommit", func() {
		var tm *fakeTxManager

		BeforeEach(func() {
			tm = &fakeTxManager{}
		})

		It("should schedule on commit", func() {
			tm.tx = &fakeTx{status: scheduler.TxStatusActive}
			engine = newEngine(scheduler.WithTransactionManager(tm))

			item := newTestItem("1")
			Expect(engine.ScheduleAfterCommit(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(item.State()).To(Equal(scheduler.StateAny))
			_, ok := engine.Find("1", scheduler.StateAny)
			Expect(ok).To(BeFalse())

			tm.tx.end(true)
			Eventually(item.Done(), time.Second).Should(BeClosed())
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
		})

		It("should cancel on rollback", func() {
			tm.tx = &fakeTx{status: scheduler.TxStatusActive}
			engine = newEngine(scheduler.WithTransactionManager(tm))

			item := newTestItem("1")
			Expect(engine.ScheduleAfterCommit(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			tm.tx.end(false)
			Expect(item.State()).To(Equal(scheduler.StateCanceled))
		})

		It("should cancel at once when the transaction is marked for rollback", func() {
			tm.tx = &fakeTx{status: scheduler.TxStatusMarkedRollback}
			engine = newEngine(scheduler.WithTransactionManager(tm))

			item := newTestItem("1")
			Expect(engine.ScheduleAfterCommit(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Expect(item.State()).To(Equal(scheduler.StateCanceled))
		})

		It("should schedule immediately without a transaction", func() {
			engine = newEngine(scheduler.WithTransactionManager(tm))

			item := newTestItem("1")
			Expect(engine.ScheduleAfterCommit(ctx, item, scheduler.PolicyEnqueue)).To(Succeed())
			Eventually(item.Done(), time.Second).Should(BeClosed())
			Expect(item.State()).To(Equal(scheduler.StateCompleted))
		})
	})
})

func ptr[T any](v T) *T { return &v }

func maps[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
