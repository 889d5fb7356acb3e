package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/kubev2v/workmanager/api/v1"
	"github.com/kubev2v/workmanager/internal/services"
)

// ScheduleWork builds a work item of the requested kind and schedules it.
// A request refused by the scheduling policy still answers 202 with the
// item in the canceled state.
// (POST /works)
func (h *Handler) ScheduleWork(c *gin.Context) {
	var req v1.ScheduleWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}

	params := services.ScheduleParams{Kind: req.Kind}
	if req.Id != nil {
		params.ID = *req.Id
	}
	if req.Category != nil {
		params.Category = *req.Category
	}
	if req.PriorityKey != nil {
		params.PriorityKey = *req.PriorityKey
	}
	if req.Policy != nil {
		params.Policy = string(*req.Policy)
	}
	if req.AfterCommit != nil {
		params.AfterCommit = *req.AfterCommit
	}
	if req.Params != nil {
		params.Params = *req.Params
	}

	item, err := h.workSrv.Schedule(c.Request.Context(), params)
	if err != nil {
		respondError(c, "work_handler", "failed to schedule work", err)
		return
	}
	c.JSON(http.StatusAccepted, v1.NewWorkFromItem(item))
}

// GetWork returns a scheduled, running or completed item
// (GET /works/{id})
func (h *Handler) GetWork(c *gin.Context, id string) {
	item, err := h.workSrv.Get(id)
	if err != nil {
		respondError(c, "work_handler", "failed to get work", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewWorkFromItem(item))
}

// CancelWork removes a scheduled item before a worker takes it
// (DELETE /works/{id})
func (h *Handler) CancelWork(c *gin.Context, id string) {
	item, err := h.workSrv.Cancel(id)
	if err != nil {
		respondError(c, "work_handler", "failed to cancel work", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewWorkFromItem(item))
}

// AwaitCompletion blocks until the queue is idle or the timeout expires
// (POST /await)
func (h *Handler) AwaitCompletion(c *gin.Context) {
	var req v1.AwaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	timeout, err := time.ParseDuration(req.Timeout)
	if err != nil || timeout <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeout must be a positive duration"})
		return
	}

	queue := ""
	if req.Queue != nil {
		queue = *req.Queue
	}

	completed, err := h.workSrv.Await(c.Request.Context(), queue, timeout)
	if err != nil {
		respondError(c, "work_handler", "failed to await completion", err)
		return
	}
	c.JSON(http.StatusOK, v1.AwaitResponse{Completed: completed})
}
