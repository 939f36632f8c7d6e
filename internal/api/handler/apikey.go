package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/api/middleware"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/service"
)

// APIKeyHandler handles API key endpoints.
type APIKeyHandler struct {
	keys   *service.KeyService
	logger *zap.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *service.KeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: logger}
}

// Create issues a new API key. The secret is only ever returned here.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	claims := middleware.GetClaims(r.Context())
	issued, err := h.keys.Issue(r.Context(), claims.UserID(), req.Name)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.logger.Info("api key issued", zap.String("user_id", claims.UserID()), zap.String("key_id", issued.ID))
	respondJSON(w, http.StatusCreated, issued)
}

// List lists the caller's API keys (without the actual key values).
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	keys, err := h.keys.List(r.Context(), claims.UserID())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &domain.APIKeyList{Keys: keys})
}

// Delete revokes one of the caller's API keys.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.keys.Revoke(r.Context(), claims.UserID(), id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.logger.Info("api key revoked", zap.String("user_id", claims.UserID()), zap.String("key_id", id))
	w.WriteHeader(http.StatusNoContent)
}
