package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/kubev2v/workmanager/api/v1"
)

// ListQueues returns every configured queue with its toggles and counts
// (GET /queues)
func (h *Handler) ListQueues(c *gin.Context) {
	queues, err := h.workSrv.ListQueues()
	if err != nil {
		respondError(c, "queue_handler", "failed to list queues", err)
		return
	}

	apiQueues := make([]v1.Queue, 0, len(queues))
	for _, q := range queues {
		apiQueues = append(apiQueues, v1.NewQueueFromModel(q))
	}
	c.JSON(http.StatusOK, v1.QueueList{Queues: apiQueues})
}

// UpdateQueue enables or disables queuing and processing. The id "*" targets
// every queue.
// (PATCH /queues/{id})
func (h *Handler) UpdateQueue(c *gin.Context, id string) {
	var req v1.QueueUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Queuing == nil && req.Processing == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queuing or processing is required"})
		return
	}

	queues, err := h.workSrv.UpdateQueue(c.Request.Context(), id, req.Queuing, req.Processing)
	if err != nil {
		respondError(c, "queue_handler", "failed to update queue", err)
		return
	}

	apiQueues := make([]v1.Queue, 0, len(queues))
	for _, q := range queues {
		apiQueues = append(apiQueues, v1.NewQueueFromModel(q))
	}
	c.JSON(http.StatusOK, v1.QueueList{Queues: apiQueues})
}

// ListQueueWorks returns the items of a queue, optionally filtered by state
// (GET /queues/{id}/works)
func (h *Handler) ListQueueWorks(c *gin.Context, id string, params v1.ListQueueWorksParams) {
	state := ""
	if params.State != nil {
		state = string(*params.State)
	}

	items, err := h.workSrv.ListWork(id, state)
	if err != nil {
		respondError(c, "queue_handler", "failed to list works", err)
		return
	}

	apiWorks := make([]v1.Work, 0, len(items))
	for _, item := range items {
		apiWorks = append(apiWorks, v1.NewWorkFromItem(item))
	}
	c.JSON(http.StatusOK, v1.WorkList{Works: apiWorks})
}

// PruneCompleted drops completed items that finished before olderThan. Without
// olderThan every completed item is dropped.
// (DELETE /queues/{id}/completed)
func (h *Handler) PruneCompleted(c *gin.Context, id string, params v1.PruneCompletedParams) {
	olderThan := time.Now()
	if params.OlderThan != nil && *params.OlderThan != "" {
		t, err := parseOlderThan(*params.OlderThan, olderThan)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		olderThan = t
	}

	removed, err := h.workSrv.PruneCompleted(id, olderThan)
	if err != nil {
		respondError(c, "queue_handler", "failed to prune completed works", err)
		return
	}
	c.JSON(http.StatusOK, v1.PruneResponse{Removed: removed})
}

// parseOlderThan accepts an RFC 3339 time or a duration counted back from now.
func parseOlderThan(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid olderThan %q: expected RFC 3339 time or positive duration", s)
	}
	return now.Add(-d), nil
}
