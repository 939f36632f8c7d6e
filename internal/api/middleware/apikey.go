package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/apikey"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/metrics"
	"github.com/bcnelson/free-api/internal/ratelimit"
	"github.com/bcnelson/free-api/internal/service"
	"github.com/bcnelson/free-api/internal/storage"
)

const (
	// APIKeyHeader carries the key. It takes precedence over the query
	// parameter.
	APIKeyHeader     = "X-API-Key"
	APIKeyQueryParam = "apiKey"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// APIKeyGate admits a request to the public API only after, in order: the
// key is well formed, it exists, the limiter allows it and the request has
// been counted. Any step that cannot be evaluated fails the request with 503.
func APIKeyGate(
	store storage.Storage,
	limiter ratelimit.Limiter,
	usage *service.UsageService,
	m *metrics.Metrics,
	logger *zap.Logger,
) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			candidate := extractAPIKey(r)
			if candidate == "" {
				m.RecordGate(metrics.OutcomeInvalidFormat)
				writeError(w, http.StatusUnauthorized, "Missing API key",
					"Provide X-API-Key header or apiKey query parameter.")
				return
			}
			if !apikey.ValidFormat(candidate) {
				m.RecordGate(metrics.OutcomeInvalidFormat)
				writeError(w, http.StatusUnauthorized, "Invalid API key format", "")
				return
			}

			key, err := store.GetAPIKeyBySecret(ctx, candidate)
			if errors.Is(err, domain.ErrNotFound) {
				m.RecordGate(metrics.OutcomeUnknownKey)
				writeError(w, http.StatusUnauthorized, "Invalid API key", "")
				return
			}
			if err != nil {
				m.RecordGate(metrics.OutcomeUnavailable)
				logger.Error("api key lookup failed", zap.Error(err))
				writeUnavailable(w)
				return
			}

			result, err := limiter.Allow(ctx, "apikey:"+key.ID)
			if err != nil {
				m.RecordGate(metrics.OutcomeUnavailable)
				logger.Error("rate limiter failed", zap.String("key_id", key.ID), zap.Error(err))
				writeUnavailable(w)
				return
			}
			setRateLimitHeaders(w, result)

			if !result.Allowed {
				m.RecordGate(metrics.OutcomeRateLimited)
				logger.Debug("api key rate limited", zap.String("key_id", key.ID))
				if retry := retryAfter(result); retry > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retry))
				}
				writeError(w, http.StatusTooManyRequests, "Too many requests",
					"Rate limit exceeded. Try again later.")
				return
			}

			if err := usage.Record(ctx, key.ID); err != nil {
				m.RecordGate(metrics.OutcomeUnavailable)
				logger.Error("recording usage failed", zap.String("key_id", key.ID), zap.Error(err))
				writeUnavailable(w)
				return
			}

			m.RecordGate(metrics.OutcomeAccepted)
			logger.Debug("api key accepted", zap.String("key_id", key.ID))

			ctx = context.WithValue(ctx, APIKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAPIKey returns the trimmed key from the header, falling back to the
// query parameter.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(r.URL.Query().Get(APIKeyQueryParam))
}

func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(max(result.Remaining, 0)))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(result.ResetUnix(), 10))
}

// retryAfter returns whole seconds until the window frees a slot.
func retryAfter(result *ratelimit.Result) int {
	if result.Reset.IsZero() {
		return 0
	}
	return int(math.Ceil(time.Until(result.Reset).Seconds()))
}

func writeUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "Service unavailable",
		"The service is temporarily unavailable. Try again later.")
}

// GetAPIKeyFromContext retrieves the API key admitted by APIKeyGate.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}
