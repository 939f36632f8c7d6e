package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bcnelson/free-api/internal/domain"
)

// writeError writes the uniform JSON error body.
func writeError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&domain.ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found",
		fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
}

// MethodNotAllowed answers requests whose path exists under another method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed",
		fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path))
}
