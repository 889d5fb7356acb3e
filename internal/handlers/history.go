package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/kubev2v/workmanager/api/v1"
	"github.com/kubev2v/workmanager/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetHistory returns finished work records with filtering, sorting and pagination
// (GET /history)
func (h *Handler) GetHistory(c *gin.Context, params v1.GetHistoryParams) {
	// Parse pagination
	page := 1
	if params.Page != nil && *params.Page > 0 {
		page = *params.Page
	}
	pageSize := defaultPageSize
	if params.PageSize != nil && *params.PageSize > 0 {
		pageSize = min(*params.PageSize, maxPageSize)
	}

	svcParams := services.HistoryParams{
		Limit:  uint64(pageSize),
		Offset: uint64((page - 1) * pageSize),
	}
	if params.Queue != nil {
		svcParams.Queues = *params.Queue
	}
	if params.State != nil {
		svcParams.States = *params.State
	}
	if params.Kind != nil {
		svcParams.Kinds = *params.Kind
	}
	if params.Id != nil {
		svcParams.WorkIDs = *params.Id
	}
	if params.Sort != nil {
		sorts, err := v1.ParseSortParams(*params.Sort)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		svcParams.Sort = sorts
	}

	result, err := h.workSrv.History(c.Request.Context(), svcParams)
	if err != nil {
		respondError(c, "history_handler", "failed to list history", err)
		return
	}

	pageCount := max((result.Total+pageSize-1)/pageSize, 1)

	records := make([]v1.HistoryRecord, 0, len(result.Records))
	for _, r := range result.Records {
		records = append(records, v1.NewHistoryRecordFromModel(r))
	}

	c.JSON(http.StatusOK, v1.HistoryResponse{
		Records:   records,
		Page:      page,
		PageCount: pageCount,
		Total:     result.Total,
	})
}
