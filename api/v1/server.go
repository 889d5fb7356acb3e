package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /await)
	AwaitCompletion(c *gin.Context)
	// (GET /history)
	GetHistory(c *gin.Context, params GetHistoryParams)
	// (GET /queues)
	ListQueues(c *gin.Context)
	// (PATCH /queues/{id})
	UpdateQueue(c *gin.Context, id string)
	// (DELETE /queues/{id}/completed)
	PruneCompleted(c *gin.Context, id string, params PruneCompletedParams)
	// (GET /queues/{id}/works)
	ListQueueWorks(c *gin.Context, id string, params ListQueueWorksParams)
	// (POST /works)
	ScheduleWork(c *gin.Context)
	// (DELETE /works/{id})
	CancelWork(c *gin.Context, id string)
	// (GET /works/{id})
	GetWork(c *gin.Context, id string)
}

// ServerInterfaceWrapper binds request parameters before calling the handlers.
type ServerInterfaceWrapper struct {
	Handler      ServerInterface
	ErrorHandler func(*gin.Context, error, int)
}

func (siw *ServerInterfaceWrapper) AwaitCompletion(c *gin.Context) {
	siw.Handler.AwaitCompletion(c)
}

func (siw *ServerInterfaceWrapper) GetHistory(c *gin.Context) {
	var params GetHistoryParams
	query := c.Request.URL.Query()

	for name, dest := range map[string]any{
		"queue": &params.Queue,
		"state": &params.State,
		"kind":  &params.Kind,
		"id":    &params.Id,
		"sort":  &params.Sort,
	} {
		if err := runtime.BindQueryParameter("form", true, false, name, query, dest); err != nil {
			siw.ErrorHandler(c, fmt.Errorf("invalid format for parameter %s: %w", name, err), http.StatusBadRequest)
			return
		}
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &params.Page); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("invalid format for parameter page: %w", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "pageSize", query, &params.PageSize); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("invalid format for parameter pageSize: %w", err), http.StatusBadRequest)
		return
	}

	siw.Handler.GetHistory(c, params)
}

func (siw *ServerInterfaceWrapper) ListQueues(c *gin.Context) {
	siw.Handler.ListQueues(c)
}

func (siw *ServerInterfaceWrapper) UpdateQueue(c *gin.Context) {
	siw.Handler.UpdateQueue(c, c.Param("id"))
}

func (siw *ServerInterfaceWrapper) PruneCompleted(c *gin.Context) {
	var params PruneCompletedParams
	if err := runtime.BindQueryParameter("form", true, false, "olderThan", c.Request.URL.Query(), &params.OlderThan); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("invalid format for parameter olderThan: %w", err), http.StatusBadRequest)
		return
	}
	siw.Handler.PruneCompleted(c, c.Param("id"), params)
}

func (siw *ServerInterfaceWrapper) ListQueueWorks(c *gin.Context) {
	var params ListQueueWorksParams
	if err := runtime.BindQueryParameter("form", true, false, "state", c.Request.URL.Query(), &params.State); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("invalid format for parameter state: %w", err), http.StatusBadRequest)
		return
	}
	siw.Handler.ListQueueWorks(c, c.Param("id"), params)
}

func (siw *ServerInterfaceWrapper) ScheduleWork(c *gin.Context) {
	siw.Handler.ScheduleWork(c)
}

func (siw *ServerInterfaceWrapper) CancelWork(c *gin.Context) {
	siw.Handler.CancelWork(c, c.Param("id"))
}

func (siw *ServerInterfaceWrapper) GetWork(c *gin.Context) {
	siw.Handler.GetWork(c, c.Param("id"))
}

// RegisterHandlers creates http.Handler with routing matching the API.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
		ErrorHandler: func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, Error{Error: err.Error()})
		},
	}

	router.POST("/await", wrapper.AwaitCompletion)
	router.GET("/history", wrapper.GetHistory)
	router.GET("/queues", wrapper.ListQueues)
	router.PATCH("/queues/:id", wrapper.UpdateQueue)
	router.DELETE("/queues/:id/completed", wrapper.PruneCompleted)
	router.GET("/queues/:id/works", wrapper.ListQueueWorks)
	router.POST("/works", wrapper.ScheduleWork)
	router.DELETE("/works/:id", wrapper.CancelWork)
	router.GET("/works/:id", wrapper.GetWork)
}
