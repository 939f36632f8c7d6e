// Package storagetest holds the behaviour every storage.Storage adapter must
// share. Adapter packages call Run from their own tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/free-api/internal/apikey"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) storage.Storage

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"Users", testUsers},
		{"UserUniqueness", testUserUniqueness},
		{"APIKeys", testAPIKeys},
		{"APIKeySecretUnique", testAPIKeySecretUnique},
		{"DeleteScopedToOwner", testDeleteScopedToOwner},
		{"UsageIncrement", testUsageIncrement},
		{"UsageConcurrentIncrement", testUsageConcurrentIncrement},
		{"UsageSumWindowAndOwnership", testUsageSum},
		{"UsageSumNoKeys", testUsageSumNoKeys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// NewUser builds a password user with a unique email.
func NewUser(name string) *domain.User {
	id := uuid.New().String()
	return &domain.User{
		ID:           id,
		Email:        fmt.Sprintf("%s-%s@example.com", name, id[:8]),
		Name:         name,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

// NewKey builds a key with a fresh secret owned by userID.
func NewKey(t *testing.T, userID, name string, createdAt time.Time) *domain.APIKey {
	t.Helper()
	secret, err := apikey.Generate()
	require.NoError(t, err)
	return &domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Secret:    secret,
		CreatedAt: createdAt.UTC().Truncate(time.Second),
	}
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.Name, got.Name)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	assert.Empty(t, got.FirebaseUID)

	got, err = s.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	fbUser := &domain.User{
		ID:          uuid.New().String(),
		FirebaseUID: "firebase-" + uuid.New().String(),
		Name:        "User",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(ctx, fbUser))

	got, err = s.GetUserByFirebaseUID(ctx, fbUser.FirebaseUID)
	require.NoError(t, err)
	assert.Equal(t, fbUser.ID, got.ID)
	assert.Empty(t, got.Email)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetUserByFirebaseUID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUserUniqueness(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	first := NewUser("bob")
	require.NoError(t, s.CreateUser(ctx, first))

	dup := NewUser("bob")
	dup.Email = first.Email
	assert.ErrorIs(t, s.CreateUser(ctx, dup), domain.ErrAlreadyExists)

	// Users without an email never collide with each other.
	a := &domain.User{ID: uuid.New().String(), FirebaseUID: "uid-a-" + first.ID, Name: "A", CreatedAt: time.Now()}
	b := &domain.User{ID: uuid.New().String(), FirebaseUID: "uid-b-" + first.ID, Name: "B", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, a))
	require.NoError(t, s.CreateUser(ctx, b))

	c := &domain.User{ID: uuid.New().String(), FirebaseUID: a.FirebaseUID, Name: "C", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateUser(ctx, c), domain.ErrAlreadyExists)
}

func testAPIKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("carol")
	require.NoError(t, s.CreateUser(ctx, user))

	now := time.Now()
	older := NewKey(t, user.ID, "older", now.Add(-time.Hour))
	newer := NewKey(t, user.ID, "newer", now)
	require.NoError(t, s.CreateAPIKey(ctx, older))
	require.NoError(t, s.CreateAPIKey(ctx, newer))

	got, err := s.GetAPIKeyBySecret(ctx, newer.Secret)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "newer", got.Name)

	_, err = s.GetAPIKeyBySecret(ctx, "fk_doesnotexistdoesnotexistdoesnot")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	keys, err := s.ListAPIKeysForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, newer.ID, keys[0].ID, "keys must be listed newest first")
	assert.Equal(t, older.ID, keys[1].ID)

	keys, err = s.ListAPIKeysForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testAPIKeySecretUnique(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("dave")
	require.NoError(t, s.CreateUser(ctx, user))

	key := NewKey(t, user.ID, "one", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	dup := NewKey(t, user.ID, "two", time.Now())
	dup.Secret = key.Secret
	assert.ErrorIs(t, s.CreateAPIKey(ctx, dup), domain.ErrAlreadyExists)
}

func testDeleteScopedToOwner(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	owner := NewUser("erin")
	other := NewUser("frank")
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateUser(ctx, other))

	key := NewKey(t, owner.ID, "mine", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	assert.ErrorIs(t, s.DeleteAPIKeyForUser(ctx, other.ID, key.ID), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAPIKeyForUser(ctx, owner.ID, "missing"), domain.ErrNotFound)

	_, err := s.GetAPIKeyBySecret(ctx, key.Secret)
	require.NoError(t, err, "key must survive a foreign revocation attempt")

	require.NoError(t, s.DeleteAPIKeyForUser(ctx, owner.ID, key.ID))

	_, err = s.GetAPIKeyBySecret(ctx, key.Secret)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAPIKeyForUser(ctx, owner.ID, key.ID), domain.ErrNotFound)
}

func testUsageIncrement(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("gina")
	require.NoError(t, s.CreateUser(ctx, user))
	key := NewKey(t, user.ID, "k", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	today := domain.Day(time.Now())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementUsage(ctx, key.ID, today.Add(time.Duration(i)*time.Hour), 1))
	}

	usage, err := s.SumUsageByDay(ctx, []string{key.ID}, today)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, today.Format(domain.DayLayout), usage[0].Date)
	assert.Equal(t, int64(3), usage[0].Count)
}

func testUsageConcurrentIncrement(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("hank")
	require.NoError(t, s.CreateUser(ctx, user))
	key := NewKey(t, user.ID, "k", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	const workers = 20
	today := domain.Day(time.Now())

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementUsage(ctx, key.ID, today, 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	usage, err := s.SumUsageByDay(ctx, []string{key.ID}, today)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, int64(workers), usage[0].Count)
}

func testUsageSum(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	user := NewUser("ivy")
	other := NewUser("jack")
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.CreateUser(ctx, other))

	k1 := NewKey(t, user.ID, "k1", time.Now())
	k2 := NewKey(t, user.ID, "k2", time.Now())
	foreign := NewKey(t, other.ID, "foreign", time.Now())
	for _, k := range []*domain.APIKey{k1, k2, foreign} {
		require.NoError(t, s.CreateAPIKey(ctx, k))
	}

	today := domain.Day(time.Now())
	yesterday := today.AddDate(0, 0, -1)
	longAgo := today.AddDate(0, 0, -40)

	require.NoError(t, s.IncrementUsage(ctx, k1.ID, today, 2))
	require.NoError(t, s.IncrementUsage(ctx, k2.ID, today, 3))
	require.NoError(t, s.IncrementUsage(ctx, k1.ID, yesterday, 4))
	require.NoError(t, s.IncrementUsage(ctx, k1.ID, longAgo, 100))
	require.NoError(t, s.IncrementUsage(ctx, foreign.ID, today, 50))

	usage, err := s.SumUsageByDay(ctx, []string{k1.ID, k2.ID}, today.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, []domain.DailyUsage{
		{Date: yesterday.Format(domain.DayLayout), Count: 4},
		{Date: today.Format(domain.DayLayout), Count: 5},
	}, usage)

	usage, err = s.SumUsageByDay(ctx, []string{k1.ID}, longAgo)
	require.NoError(t, err)
	require.Len(t, usage, 3)
	assert.Equal(t, longAgo.Format(domain.DayLayout), usage[0].Date)
}

func testUsageSumNoKeys(t *testing.T, s storage.Storage) {
	usage, err := s.SumUsageByDay(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, usage)
}
