package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	firebasesdk "firebase.google.com/go/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/api"
	"github.com/bcnelson/free-api/internal/auth"
	"github.com/bcnelson/free-api/internal/config"
	"github.com/bcnelson/free-api/internal/firebase"
	"github.com/bcnelson/free-api/internal/logging"
	"github.com/bcnelson/free-api/internal/metrics"
	"github.com/bcnelson/free-api/internal/ratelimit"
	"github.com/bcnelson/free-api/internal/service"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/storage/cache"
	firestorestore "github.com/bcnelson/free-api/internal/storage/firestore"
	"github.com/bcnelson/free-api/internal/storage/memory"
	"github.com/bcnelson/free-api/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	m := metrics.New()

	// The Firebase app is shared by Firestore and the Admin verifier.
	var app *firebasesdk.App
	if cfg.Database.Driver == config.DriverFirestore || cfg.Firebase.CredentialsFile != "" {
		app, err = firebase.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Error("firebase initialization failed", zap.Error(err))
		}
	}

	// Initialize storage. A store that cannot be opened is replaced by one
	// that reports itself unavailable so store-free routes keep serving.
	store := openStore(ctx, cfg, app, logger)
	defer store.Close()

	limiter := newLimiter(cfg, m, logger)
	defer limiter.Close()

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpires)
	verifier := newIdentityVerifier(ctx, cfg, app, logger)

	usage := service.NewUsageService(store)
	router := api.NewRouter(api.Deps{
		Store:       store,
		Limiter:     limiter,
		Keys:        service.NewKeyService(store),
		Usage:       usage,
		Accounts:    service.NewAccountService(store, tokens, verifier, cfg.Auth.BcryptCost, logger),
		Tokens:      tokens,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.CORS.Origins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("starting Free API",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("env", cfg.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("rate_limit", cfg.RateLimit.RedisURL != ""),
		zap.Bool("firebase_auth", verifier != nil),
	)

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, app *firebasesdk.App, logger *zap.Logger) storage.Storage {
	store, err := newStore(ctx, cfg, app, logger)
	if err != nil {
		logger.Error("storage unavailable, serving degraded", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return storage.NewUnavailable(err)
	}

	if cfg.Cache.KeyTTL > 0 {
		logger.Info("api key lookup cache enabled", zap.Duration("ttl", cfg.Cache.KeyTTL))
		return cache.New(store, cfg.Cache.KeyTTL)
	}
	return store
}

func newStore(ctx context.Context, cfg *config.Config, app *firebasesdk.App, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverFirestore:
		if app == nil {
			return nil, fmt.Errorf("firebase app is not initialized")
		}
		return firestorestore.New(ctx, app, firestorestore.WithLogger(logger))
	case config.DriverSQLite:
		if err := ensureDataDir(cfg.Database.DSN); err != nil {
			return nil, err
		}
		return sql.New(cfg.Database.Driver, cfg.Database.DSN)
	default:
		return sql.New(cfg.Database.Driver, cfg.Database.DSN)
	}
}

// ensureDataDir creates the directory holding a SQLite database file.
func ensureDataDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

func newLimiter(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) ratelimit.Limiter {
	if cfg.RateLimit.RedisURL == "" {
		logger.Warn("RATE_LIMIT_REDIS_URL not set, rate limiting disabled")
		return ratelimit.Disabled{}
	}

	const breakerName = "ratelimit-redis"
	m.SetCircuitBreakerState(breakerName, int(gobreaker.StateClosed))

	limiter, err := ratelimit.NewRedisLimiterFromURL(cfg.RateLimit.RedisURL, ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Prefix:   cfg.RateLimit.Prefix,
	},
		ratelimit.WithLogger(logger),
		ratelimit.WithStateCallback(func(from, to gobreaker.State) {
			m.SetCircuitBreakerState(breakerName, int(to))
		}),
	)
	if err != nil {
		logger.Error("rate limiter misconfigured, public API will answer 503", zap.Error(err))
		return ratelimit.NewUnavailable(err)
	}
	return limiter
}

func newIdentityVerifier(ctx context.Context, cfg *config.Config, app *firebasesdk.App, logger *zap.Logger) auth.IdentityVerifier {
	if cfg.Firebase.CredentialsFile != "" && app != nil {
		verifier, err := auth.NewAdminVerifier(ctx, app)
		if err == nil {
			return verifier
		}
		logger.Error("firebase admin verifier failed, falling back to OIDC", zap.Error(err))
	}

	if cfg.Firebase.ProjectID == "" {
		logger.Info("FIREBASE_PROJECT_ID not set, firebase sign-in disabled")
		return nil
	}

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Firebase.ProjectID)
	if err != nil {
		logger.Error("firebase verifier unavailable", zap.Error(err))
		return nil
	}
	return verifier
}
