package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/storage"
)

// readyTimeout bounds the store ping behind /ready.
const readyTimeout = 2 * time.Second

// InfoResponse describes the running service.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// ServiceHandler serves unauthenticated service endpoints.
type ServiceHandler struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(store storage.Storage, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{store: store, logger: logger}
}

// Info never touches the store.
func (h *ServiceHandler) Info(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &InfoResponse{
		Name:    "Free API",
		Version: "1.0",
		Status:  "running",
	})
}

// Health is a liveness check.
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}

// Ready reports whether the store answers.
func (h *ServiceHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, &HealthResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}
