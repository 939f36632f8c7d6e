package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bcnelson/free-api/internal/auth"
)

type contextKey string

const (
	APIKeyContextKey contextKey = "api_key"
	ClaimsContextKey contextKey = "claims"
)

// RequireBearer creates authentication middleware for dashboard routes. The
// request must carry "Authorization: Bearer <token>" with a token signed by
// tokens.
func RequireBearer(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}

			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the bearer token claims from the request context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims
}
