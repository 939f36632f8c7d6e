package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/validation"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	respondJSON(w, status, &domain.ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}

// handleError converts domain errors to HTTP errors. Messages of store and
// internal failures never reach the client.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)

	var ve *validation.ValidationError
	var ves validation.ValidationErrors
	var de *domain.Error
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error(), "")
		return
	case errors.As(err, &ves):
		respondError(w, http.StatusBadRequest, ves.Error(), "")
		return
	case errors.As(err, &de):
		respondError(w, status, de.Message, de.Detail)
		return
	}

	switch status {
	case http.StatusNotFound:
		respondError(w, status, "Not found", "")
	case http.StatusConflict:
		respondError(w, status, "Already exists", "")
	case http.StatusBadRequest:
		respondError(w, status, "Invalid input", "")
	case http.StatusUnauthorized:
		respondError(w, status, "Unauthorized", "")
	case http.StatusServiceUnavailable:
		logger.Error("dependency unavailable", zap.Error(err))
		respondError(w, status, "Service unavailable", "The service is temporarily unavailable. Try again later.")
	default:
		logger.Error("internal error", zap.Error(err))
		respondError(w, status, "Internal server error", "")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a JSON request body. A malformed body is an input
// error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.NewValidationError("body", "must be valid JSON")
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, validation.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
