package handler

import (
	"net/http"

	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
)

// HealthHandler answers liveness probes. It never touches dependencies.
type HealthHandler struct {
	service string
}

func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service}
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, model.HealthResponse{Status: "OK", Service: h.service})
}
