package handler

import (
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultEchoMessage = "Hello from Free API"

// HealthResponse is returned by the public and service health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// EchoResponse is returned by the echo endpoint.
type EchoResponse struct {
	Echo     string `json:"echo"`
	Received string `json:"received"`
}

// RandomResponse is returned by the random endpoint.
type RandomResponse struct {
	Value int64 `json:"value"`
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
}

// PublicHandler serves the key-gated public API.
type PublicHandler struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(logger *zap.Logger) *PublicHandler {
	return &PublicHandler{logger: logger, now: time.Now}
}

// Health reports that the public API is reachable.
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status:    "ok",
		Timestamp: h.timestamp(),
	})
}

// Echo returns ?message= or a default greeting.
func (h *PublicHandler) Echo(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		message = defaultEchoMessage
	}
	respondJSON(w, http.StatusOK, &EchoResponse{
		Echo:     message,
		Received: h.timestamp(),
	})
}

// Random returns a uniform integer in [min, max]. Reversed bounds are
// swapped.
func (h *PublicHandler) Random(w http.ResponseWriter, r *http.Request) {
	lo, err := queryInt(r, "min", 0)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	hi, err := queryInt(r, "max", 100)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	respondJSON(w, http.StatusOK, &RandomResponse{
		Value: randomBetween(lo, hi),
		Min:   lo,
		Max:   hi,
	})
}

// randomBetween returns a uniform value in [lo, hi], lo <= hi.
func randomBetween(lo, hi int64) int64 {
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return int64(rand.Uint64())
	}
	return int64(uint64(lo) + rand.Uint64N(span+1))
}

func (h *PublicHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
