package scheduler_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

var _ = Describe("HandoffQueue", func() {
	var (
		ctx     context.Context
		backend *scheduler.MemoryBackend
		h       *scheduler.HandoffQueue
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = scheduler.NewMemoryBackend()
		h = scheduler.NewHandoffQueue(backend, "q1", 2)
		// no consumer
		h.SetActive(false)
	})

	AfterEach(func() {
		h.Close()
	})

	putAsync := func(ctx context.Context, item *scheduler.Item) chan error {
		res := make(chan error, 1)
		go func() { res <- h.Put(ctx, item) }()
		return res
	}

	// Given a queue with capacity 2 and no active consumer
	// When a third item is put by an external producer
	// Then the put blocks until capacity is freed
	It("should block external producers at capacity", func() {
		Expect(h.Put(ctx, newTestItem("1"))).To(Succeed())
		first := newTestItem("2")
		Expect(h.Put(ctx, first)).To(Succeed())

		res := putAsync(ctx, newTestItem("3"))
		Consistently(res, 300*time.Millisecond).ShouldNot(Receive())

		Expect(h.Remove(first)).To(BeTrue())
		Eventually(res, time.Second).Should(Receive(BeNil()))
		Expect(h.Len()).To(Equal(2))
	})

	// Given a full queue
	// When a worker puts more items
	// Then they are accepted up to twice the capacity
	It("should let worker producers use the doubled capacity", func() {
		workerCtx := scheduler.WithWorker(ctx, scheduler.WorkerInfo{QueueID: "q1"})
		for i := range 4 {
			Expect(h.Put(workerCtx, newTestItem(fmt.Sprint(i)))).To(Succeed())
		}
		err := h.Put(workerCtx, newTestItem("overflow"))
		Expect(err).To(MatchError(scheduler.ErrQueueFull))
		Expect(h.Len()).To(Equal(4))
	})

	It("should report an interrupted wait", func() {
		Expect(h.Put(ctx, newTestItem("1"))).To(Succeed())
		Expect(h.Put(ctx, newTestItem("2"))).To(Succeed())

		cctx, cancel := context.WithCancel(ctx)
		res := putAsync(cctx, newTestItem("3"))
		time.Sleep(50 * time.Millisecond)
		cancel()

		var err error
		Eventually(res, time.Second).Should(Receive(&err))
		Expect(err).To(MatchError(scheduler.ErrHandoffInterrupted))
		Expect(err).To(MatchError(context.Canceled))
		Expect(h.Len()).To(Equal(2))
	})

	It("should release waiting producers on close", func() {
		Expect(h.Put(ctx, newTestItem("1"))).To(Succeed())
		Expect(h.Put(ctx, newTestItem("2"))).To(Succeed())

		res := putAsync(ctx, newTestItem("3"))
		time.Sleep(50 * time.Millisecond)
		h.Close()

		Eventually(res, time.Second).Should(Receive(MatchError(scheduler.ErrHandoffClosed)))
		Expect(h.Put(ctx, newTestItem("4"))).To(MatchError(scheduler.ErrHandoffClosed))
	})

	It("should never block when unbounded", func() {
		unbounded := scheduler.NewHandoffQueue(backend, "q2", 0)
		unbounded.SetActive(false)
		for i := range 100 {
			Expect(unbounded.Put(ctx, newTestItem(fmt.Sprint(i)))).To(Succeed())
		}
		Expect(unbounded.Len()).To(Equal(100))
	})
})
