package storage

import (
	"context"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
//
// Failures of the backing store that are not domain conditions must match
// domain.ErrUnavailable with errors.Is.
type Storage interface {
	// Close closes the storage connection.
	Close() error
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error)
	ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error)
	// DeleteAPIKeyForUser returns domain.ErrNotFound when the key does not
	// exist or belongs to another user.
	DeleteAPIKeyForUser(ctx context.Context, userID, id string) error

	// Usage
	// IncrementUsage atomically adds delta to the counter of (keyID, day),
	// creating it when absent.
	IncrementUsage(ctx context.Context, keyID string, day time.Time, delta int64) error
	// SumUsageByDay sums counters of the given keys for every day on or after
	// since, ascending by day. Days without usage are omitted.
	SumUsageByDay(ctx context.Context, keyIDs []string, since time.Time) ([]domain.DailyUsage, error)
}
