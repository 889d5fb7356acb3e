package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	srvErrors "github.com/kubev2v/workmanager/pkg/errors"
	"github.com/kubev2v/workmanager/pkg/scheduler"
)

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case srvErrors.IsResourceNotFoundError(err):
		return http.StatusNotFound
	case srvErrors.IsInvalidArgumentError(err):
		return http.StatusBadRequest
	case srvErrors.IsConflictError(err):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrNotStarted):
		return http.StatusServiceUnavailable
	case scheduler.IsConfigurationError(err):
		return http.StatusConflict
	case scheduler.IsSubmissionError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger string, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.S().Named(logger).Errorw(msg, "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
