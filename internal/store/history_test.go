package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/internal/store"
	"github.com/kubev2v/workmanager/internal/store/migrations"
	"github.com/kubev2v/workmanager/pkg/scheduler"
)

func newTestStore(ctx context.Context) (*store.Store, *sql.DB) {
	db, err := store.NewDB(store.MemoryDSN)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrations.Run(ctx, db)).To(Succeed())
	return store.NewStore(db), db
}

func record(id, queue string, state scheduler.State, completed time.Time) models.WorkRecord {
	return models.WorkRecord{
		ID:             id,
		QueueID:        queue,
		Category:       "default",
		Kind:           "sleep",
		State:          state,
		SchedulingTime: completed.Add(-2 * time.Second),
		StartTime:      completed.Add(-time.Second),
		CompletionTime: completed,
	}
}

func recordIDs(records []models.WorkRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

var _ = Describe("HistoryStore", func() {
	var (
		ctx  context.Context
		s    *store.Store
		db   *sql.DB
		base time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		s, db = newTestStore(ctx)
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Context("Save", func() {
		// Given a finished item with an error
		// When it is saved and listed back
		// Then every field round-trips
		It("should persist a record", func() {
			// Arrange
			r := record("w1", "io", scheduler.StateFailed, base)
			r.Error = "disk full"

			// Act
			Expect(s.History().Save(ctx, r)).To(Succeed())
			records, err := s.History().List(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			got := records[0]
			Expect(got.ID).To(Equal("w1"))
			Expect(got.QueueID).To(Equal("io"))
			Expect(got.Kind).To(Equal("sleep"))
			Expect(got.State).To(Equal(scheduler.StateFailed))
			Expect(got.Error).To(Equal("disk full"))
			Expect(got.CompletionTime).To(BeTemporally("~", base, time.Millisecond))
			Expect(got.StartTime).To(BeTemporally("~", base.Add(-time.Second), time.Millisecond))
			Expect(got.Duration()).To(BeNumerically("~", time.Second, time.Millisecond))
		})

		It("should keep items canceled before they started", func() {
			r := record("w1", "io", scheduler.StateCanceled, base)
			r.StartTime = time.Time{}

			Expect(s.History().Save(ctx, r)).To(Succeed())
			records, err := s.History().List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].StartTime.IsZero()).To(BeTrue())
			Expect(records[0].Duration()).To(BeZero())
		})

		It("should keep several runs of the same id", func() {
			Expect(s.History().Save(ctx,
				record("same", "io", scheduler.StateCanceled, base),
				record("same", "io", scheduler.StateCompleted, base.Add(time.Minute)),
			)).To(Succeed())

			count, err := s.History().Count(ctx, store.ByWorkIDs("same"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should accept an empty batch", func() {
			Expect(s.History().Save(ctx)).To(Succeed())
		})
	})

	Context("List", func() {
		BeforeEach(func() {
			var records []models.WorkRecord
			for i := range 6 {
				state := scheduler.StateCompleted
				if i%2 == 1 {
					state = scheduler.StateFailed
				}
				queue := "io"
				if i >= 4 {
					queue = "cpu"
				}
				records = append(records, record(fmt.Sprintf("w%d", i), queue, state, base.Add(time.Duration(i)*time.Minute)))
			}
			Expect(s.History().Save(ctx, records...)).To(Succeed())
		})

		It("should list newest first by default", func() {
			records, err := s.History().List(ctx, store.WithDefaultSort())
			Expect(err).NotTo(HaveOccurred())
			Expect(recordIDs(records)).To(Equal([]string{"w5", "w4", "w3", "w2", "w1", "w0"}))
		})

		It("should filter by queue and state", func() {
			records, err := s.History().List(ctx,
				store.ByQueues("io"),
				store.ByStates(string(scheduler.StateFailed)),
				store.WithDefaultSort(),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(recordIDs(records)).To(Equal([]string{"w3", "w1"}))
		})

		It("should ignore empty filters", func() {
			count, err := s.History().Count(ctx, store.ByQueues(), store.ByStates(), store.ByKinds())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(6))
		})

		It("should filter by completion range", func() {
			records, err := s.History().List(ctx,
				store.ByCompletedRange(base.Add(time.Minute), base.Add(3*time.Minute)),
				store.WithSort([]store.SortParam{{Field: "completionTime"}}),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(recordIDs(records)).To(Equal([]string{"w1", "w2"}))
		})

		It("should page results", func() {
			sorted := store.WithSort([]store.SortParam{{Field: "id"}})
			first, err := s.History().List(ctx, sorted, store.WithLimit(4))
			Expect(err).NotTo(HaveOccurred())
			second, err := s.History().List(ctx, sorted, store.WithLimit(4), store.WithOffset(4))
			Expect(err).NotTo(HaveOccurred())

			Expect(recordIDs(first)).To(Equal([]string{"w0", "w1", "w2", "w3"}))
			Expect(recordIDs(second)).To(Equal([]string{"w4", "w5"}))
		})

		It("should fall back to the default sort for unknown fields", func() {
			Expect(store.IsSortField("password")).To(BeFalse())
			records, err := s.History().List(ctx, store.WithSort([]store.SortParam{{Field: "password"}}))
			Expect(err).NotTo(HaveOccurred())
			Expect(recordIDs(records)[0]).To(Equal("w5"))
		})
	})

	Context("DeleteOlderThan", func() {
		It("should remove only older rows", func() {
			Expect(s.History().Save(ctx,
				record("old", "io", scheduler.StateCompleted, base),
				record("new", "io", scheduler.StateCompleted, base.Add(time.Hour)),
			)).To(Succeed())

			n, err := s.History().DeleteOlderThan(ctx, base.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeEquivalentTo(1))

			records, err := s.History().List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recordIDs(records)).To(Equal([]string{"new"}))
		})
	})
})
