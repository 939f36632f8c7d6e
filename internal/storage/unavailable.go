package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
)

// Unavailable is a Storage whose every call fails with domain.ErrUnavailable.
// It stands in for a store that could not be opened at start-up so that
// routes which need no storage keep serving.
type Unavailable struct {
	err error
}

// NewUnavailable returns a store that reports cause on every call.
func NewUnavailable(cause error) *Unavailable {
	return &Unavailable{err: fmt.Errorf("%w: %v", domain.ErrUnavailable, cause)}
}

func (u *Unavailable) Close() error                   { return nil }
func (u *Unavailable) Ping(ctx context.Context) error { return u.err }

func (u *Unavailable) CreateUser(ctx context.Context, user *domain.User) error { return u.err }

func (u *Unavailable) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return nil, u.err
}

func (u *Unavailable) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, u.err
}

func (u *Unavailable) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return nil, u.err
}

func (u *Unavailable) CreateAPIKey(ctx context.Context, key *domain.APIKey) error { return u.err }

func (u *Unavailable) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	return nil, u.err
}

func (u *Unavailable) ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return nil, u.err
}

func (u *Unavailable) DeleteAPIKeyForUser(ctx context.Context, userID, id string) error {
	return u.err
}

func (u *Unavailable) IncrementUsage(ctx context.Context, keyID string, day time.Time, delta int64) error {
	return u.err
}

func (u *Unavailable) SumUsageByDay(ctx context.Context, keyIDs []string, since time.Time) ([]domain.DailyUsage, error) {
	return nil, u.err
}
