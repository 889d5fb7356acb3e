package handlers

import (
	"github.com/kubev2v/workmanager/internal/services"
)

type Handler struct {
	workSrv *services.WorkService
}

func New(workSrv *services.WorkService) *Handler {
	return &Handler{
		workSrv: workSrv,
	}
}
