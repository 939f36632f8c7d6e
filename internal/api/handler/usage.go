package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/api/middleware"
	"github.com/bcnelson/free-api/internal/service"
)

// UsageHandler handles the usage report endpoint.
type UsageHandler struct {
	usage  *service.UsageService
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage *service.UsageService, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger}
}

// Get reports the caller's daily usage over the last ?days= days.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultUsageDays)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	claims := middleware.GetClaims(r.Context())
	report, err := h.usage.Report(r.Context(), claims.UserID(), clampInt(days))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// clampInt narrows an int64 query value before the service clamps it.
func clampInt(n int64) int {
	const limit = 1 << 30
	if n > limit {
		return limit
	}
	if n < -limit {
		return -limit
	}
	return int(n)
}
