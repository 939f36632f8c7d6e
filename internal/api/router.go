package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/api/handler"
	"github.com/bcnelson/free-api/internal/api/middleware"
	"github.com/bcnelson/free-api/internal/auth"
	"github.com/bcnelson/free-api/internal/metrics"
	"github.com/bcnelson/free-api/internal/ratelimit"
	"github.com/bcnelson/free-api/internal/service"
	"github.com/bcnelson/free-api/internal/storage"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Store    storage.Storage
	Limiter  ratelimit.Limiter
	Keys     *service.KeyService
	Usage    *service.UsageService
	Accounts *service.AccountService
	Tokens   *auth.TokenIssuer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(deps.CORSOrigins)))
	r.Use(middleware.SecurityHeaders)

	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	// Service endpoints (no auth, no store except /ready)
	serviceHandler := handler.NewServiceHandler(deps.Store, logger)
	r.Get("/api", serviceHandler.Info)
	r.Get("/health", serviceHandler.Health)
	r.Get("/ready", serviceHandler.Ready)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentType)

		// Accounts
		authHandler := handler.NewAuthHandler(deps.Accounts, logger)
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/firebase", authHandler.Firebase)

		// Dashboard routes (bearer token required)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireBearer(deps.Tokens))

			r.Get("/api/auth/me", authHandler.Me)

			keyHandler := handler.NewAPIKeyHandler(deps.Keys, logger)
			r.Post("/api/keys", keyHandler.Create)
			r.Get("/api/keys", keyHandler.List)
			r.Delete("/api/keys/{id}", keyHandler.Delete)

			usageHandler := handler.NewUsageHandler(deps.Usage, logger)
			r.Get("/api/usage", usageHandler.Get)
		})

		// Public API (API key required). Group middleware wraps each route,
		// so unmatched paths and methods never reach the gate.
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyGate(deps.Store, deps.Limiter, deps.Usage, deps.Metrics, logger))

			publicHandler := handler.NewPublicHandler(logger)
			r.Get("/api/public/v1/health", publicHandler.Health)
			r.Get("/api/public/v1/echo", publicHandler.Echo)
			r.Get("/api/public/v1/random", publicHandler.Random)
		})
	})

	return r
}
