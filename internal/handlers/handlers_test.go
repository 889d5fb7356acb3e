package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/workmanager/api/v1"
	"github.com/kubev2v/workmanager/internal/handlers"
	"github.com/kubev2v/workmanager/internal/models"
	"github.com/kubev2v/workmanager/internal/services"
	"github.com/kubev2v/workmanager/internal/store"
	"github.com/kubev2v/workmanager/internal/store/migrations"
	"github.com/kubev2v/workmanager/pkg/scheduler"
	"github.com/kubev2v/workmanager/pkg/works"
)

var _ = Describe("Handler", func() {
	var (
		ctx    context.Context
		db     *sql.DB
		st     *store.Store
		engine *scheduler.Engine
		router *gin.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(store.MemoryDSN)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())
		st = store.NewStore(db)

		engine, err = scheduler.NewEngine(scheduler.Config{
			Queues: []scheduler.QueueConfig{
				scheduler.NewQueueConfig(scheduler.DefaultQueueID, 2, 0),
				scheduler.NewQueueConfig("io", 1, 10),
			},
			Categories: map[string]string{"copy": "io"},
		}, scheduler.WithTransactionManager(st.Tx()))
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Start(ctx)).To(Succeed())

		h := handlers.New(services.NewWorkService(engine, works.DefaultRegistry(), st))
		router = gin.New()
		v1.RegisterHandlers(router.Group("/api/v1"), h)
	})

	AfterEach(func() {
		if engine.Started() {
			_, _ = engine.Shutdown(ctx, time.Second)
		}
		db.Close()
	})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, "/api/v1"+path, reader)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(w.Body.Bytes(), v)).To(Succeed())
	}

	Context("queues", func() {
		It("should list the configured queues", func() {
			// Act
			w := do(http.MethodGet, "/queues", nil)

			// Assert
			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.QueueList
			decode(w, &resp)
			Expect(resp.Queues).To(HaveLen(2))
			Expect(resp.Queues[0].Id).To(Equal(scheduler.DefaultQueueID))
			Expect(resp.Queues[1].Capacity).To(Equal(10))
			Expect(resp.Queues[1].Processing).To(BeTrue())
		})

		// Given a running engine
		// When processing is disabled on every queue
		// Then every queue reports processing false and the toggle is persisted
		It("should toggle every queue with the wildcard id", func() {
			w := do(http.MethodPatch, "/queues/*", v1.QueueUpdate{Processing: ptr(false)})

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.QueueList
			decode(w, &resp)
			Expect(resp.Queues).To(HaveLen(2))
			for _, q := range resp.Queues {
				Expect(q.Processing).To(BeFalse())
				Expect(q.Queuing).To(BeTrue())
			}

			saved, err := st.QueueSettings().List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(HaveLen(2))
		})

		It("should reject an empty update", func() {
			w := do(http.MethodPatch, "/queues/io", v1.QueueUpdate{})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown queue", func() {
			Expect(do(http.MethodPatch, "/queues/nope", v1.QueueUpdate{Queuing: ptr(false)}).Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/queues/nope/works", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("should reject an unknown state filter", func() {
			w := do(http.MethodGet, "/queues/io/works?state=sleeping", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a malformed olderThan", func() {
			w := do(http.MethodDelete, "/queues/io/completed?olderThan=yesterday", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("works", func() {
		// Given a queue with processing disabled
		// When work is scheduled, listed and canceled over the API
		// Then the item moves from scheduled to canceled
		It("should schedule, list and cancel work", func() {
			Expect(engine.SetQueueActive("io", nil, ptr(false))).To(Succeed())

			w := do(http.MethodPost, "/works", v1.ScheduleWorkRequest{
				Kind:     works.KindSleep,
				Id:       ptr("copy-1"),
				Category: ptr("copy"),
				Params:   &map[string]any{"duration": "1s"},
			})
			Expect(w.Code).To(Equal(http.StatusAccepted))
			var work v1.Work
			decode(w, &work)
			Expect(work.Id).To(Equal("copy-1"))
			Expect(work.State).To(Equal(v1.WorkStateScheduled))
			Expect(work.Kind).To(HaveValue(Equal(works.KindSleep)))

			w = do(http.MethodGet, "/queues/io/works?state=scheduled", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var list v1.WorkList
			decode(w, &list)
			Expect(list.Works).To(HaveLen(1))

			w = do(http.MethodDelete, "/works/copy-1", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			decode(w, &work)
			Expect(work.State).To(Equal(v1.WorkStateCanceled))

			Expect(do(http.MethodDelete, "/works/copy-1", nil).Code).To(Equal(http.StatusConflict))
		})

		It("should return 404 for unknown work", func() {
			Expect(do(http.MethodGet, "/works/missing", nil).Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodDelete, "/works/missing", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("should reject unknown kinds and policies", func() {
			Expect(do(http.MethodPost, "/works", v1.ScheduleWorkRequest{Kind: "dance"}).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodPost, "/works", v1.ScheduleWorkRequest{}).Code).To(Equal(http.StatusBadRequest))

			policy := v1.SchedulingPolicy("whenever")
			w := do(http.MethodPost, "/works", v1.ScheduleWorkRequest{Kind: works.KindSleep, Policy: &policy})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should await completion and prune", func() {
			w := do(http.MethodPost, "/works", v1.ScheduleWorkRequest{
				Kind:   works.KindSleep,
				Params: &map[string]any{"duration": 20, "tick": 5},
			})
			Expect(w.Code).To(Equal(http.StatusAccepted))

			w = do(http.MethodPost, "/await", v1.AwaitRequest{Timeout: "5s"})
			Expect(w.Code).To(Equal(http.StatusOK))
			var awaited v1.AwaitResponse
			decode(w, &awaited)
			Expect(awaited.Completed).To(BeTrue())

			w = do(http.MethodDelete, "/queues/default/completed", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var pruned v1.PruneResponse
			decode(w, &pruned)
			Expect(pruned.Removed).To(Equal(1))
		})

		It("should reject an await without a timeout", func() {
			Expect(do(http.MethodPost, "/await", v1.AwaitRequest{}).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("history", func() {
		BeforeEach(func() {
			now := time.Now().UTC().Truncate(time.Millisecond)
			var records []models.WorkRecord
			for i := range 25 {
				state := scheduler.StateCompleted
				if i%5 == 0 {
					state = scheduler.StateFailed
				}
				records = append(records, models.WorkRecord{
					ID:             "w" + string(rune('a'+i)),
					QueueID:        scheduler.DefaultQueueID,
					Kind:           works.KindSleep,
					State:          state,
					CompletionTime: now.Add(time.Duration(i) * time.Second),
				})
			}
			Expect(st.History().Save(ctx, records...)).To(Succeed())
		})

		It("should page with the default page size", func() {
			w := do(http.MethodGet, "/history", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.HistoryResponse
			decode(w, &resp)
			Expect(resp.Total).To(Equal(25))
			Expect(resp.PageCount).To(Equal(2))
			Expect(resp.Records).To(HaveLen(20))
			// newest first
			Expect(resp.Records[0].Id).To(Equal("wy"))
		})

		It("should filter and sort", func() {
			w := do(http.MethodGet, "/history?state=failed&sort=completionTime:asc&page=1&pageSize=2", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.HistoryResponse
			decode(w, &resp)
			Expect(resp.Total).To(Equal(5))
			Expect(resp.PageCount).To(Equal(3))
			Expect(resp.Records).To(HaveLen(2))
			Expect(resp.Records[0].Id).To(Equal("wa"))
			Expect(resp.Records[1].Id).To(Equal("wf"))
		})

		It("should reject a bad sort", func() {
			Expect(do(http.MethodGet, "/history?sort=name:asc", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodGet, "/history?sort=state:sideways", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a non numeric page", func() {
			Expect(do(http.MethodGet, "/history?page=two", nil).Code).To(Equal(http.StatusBadRequest))
		})
	})
})

func ptr[T any](v T) *T { return &v }
