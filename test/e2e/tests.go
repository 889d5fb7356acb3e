package main

import (
	"context"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/workmanager/api/v1"
	srvErrors "github.com/kubev2v/workmanager/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("workd", Ordered, func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterAll(func() {
		// leave the daemon serving
		_, _ = workd.UpdateQueue(ctx, "*", v1.QueueUpdate{Queuing: ptr(true), Processing: ptr(true)})
	})

	It("should list the default queue", func() {
		queues, err := workd.ListQueues(ctx)
		Expect(err).NotTo(HaveOccurred())

		ids := make([]string, 0, len(queues))
		for _, q := range queues {
			ids = append(ids, q.Id)
		}
		Expect(ids).To(ContainElements("default", cfg.IOQueue))
	})

	// Given a running daemon
	// When a sleep work is scheduled with a mapped category
	// Then it runs on the mapped queue and completes
	It("should route work by category and complete it", func() {
		id := runPrefix + "copy"
		work, err := workd.ScheduleWork(ctx, v1.ScheduleWorkRequest{
			Kind:     "sleep",
			Id:       &id,
			Category: &cfg.IOCategory,
			Params:   &map[string]any{"duration": "200ms"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(work.State).To(BeElementOf(v1.WorkStateScheduled, v1.WorkStateRunning))

		done, err := workd.Await(ctx, cfg.IOQueue, cfg.WaitTimeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())

		got, err := workd.GetWork(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.State).To(Equal(v1.WorkStateCompleted))
		Expect(got.Progress).To(HaveValue(BeNumerically("==", 100)))
	})

	It("should record failures", func() {
		id := runPrefix + "fail"
		_, err := workd.ScheduleWork(ctx, v1.ScheduleWorkRequest{
			Kind:   "fail",
			Id:     &id,
			Params: &map[string]any{"message": "boom"},
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func(g Gomega) {
			got, err := workd.GetWork(ctx, id)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got.State).To(Equal(v1.WorkStateFailed))
			g.Expect(got.Error).To(HaveValue(Equal("boom")))
		}, cfg.WaitTimeout, 100*time.Millisecond).Should(Succeed())

		Eventually(func(g Gomega) {
			h, err := workd.History(ctx, url.Values{"id": {id}})
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(h.Records).To(HaveLen(1))
			g.Expect(h.Records[0].State).To(Equal(v1.WorkStateFailed))
		}, cfg.WaitTimeout, 200*time.Millisecond).Should(Succeed())
	})

	// Given processing disabled on the default queue
	// When the same id is scheduled twice with if_not_scheduled
	// Then the second request is refused and the first can be canceled
	It("should apply scheduling policies and cancel scheduled work", func() {
		_, err := workd.UpdateQueue(ctx, "default", v1.QueueUpdate{Processing: ptr(false)})
		Expect(err).NotTo(HaveOccurred())

		id := runPrefix + "held"
		req := v1.ScheduleWorkRequest{
			Kind:   "sleep",
			Id:     &id,
			Policy: ptr(v1.SchedulingPolicyIfNotScheduled),
			Params: &map[string]any{"duration": "1s"},
		}
		first, err := workd.ScheduleWork(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.State).To(Equal(v1.WorkStateScheduled))

		second, err := workd.ScheduleWork(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.State).To(Equal(v1.WorkStateCanceled))

		canceled, err := workd.CancelWork(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(canceled.State).To(Equal(v1.WorkStateCanceled))

		_, err = workd.CancelWork(ctx, id)
		Expect(srvErrors.IsConflictError(err)).To(BeTrue())

		_, err = workd.UpdateQueue(ctx, "default", v1.QueueUpdate{Processing: ptr(true)})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should refuse work while queuing is disabled", func() {
		_, err := workd.UpdateQueue(ctx, cfg.IOQueue, v1.QueueUpdate{Queuing: ptr(false)})
		Expect(err).NotTo(HaveOccurred())

		work, err := workd.ScheduleWork(ctx, v1.ScheduleWorkRequest{Kind: "sleep", Category: &cfg.IOCategory})
		Expect(err).NotTo(HaveOccurred())
		Expect(work.State).To(Equal(v1.WorkStateCanceled))

		_, err = workd.UpdateQueue(ctx, cfg.IOQueue, v1.QueueUpdate{Queuing: ptr(true)})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should report unknown resources", func() {
		_, err := workd.GetWork(ctx, runPrefix+"missing")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())

		_, err = workd.ListQueueWorks(ctx, "no-such-queue", "")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})
})
