package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/storage/memory"
	"github.com/bcnelson/free-api/internal/storage/storagetest"
)

// countingStore counts key lookups reaching the wrapped store.
type countingStore struct {
	storage.Storage
	lookups int
}

func (c *countingStore) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	c.lookups++
	return c.Storage.GetAPIKeyBySecret(ctx, secret)
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New(memory.New(), time.Minute)
	})
}

func TestLookupsAreCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Storage: memory.New()}
	store := New(inner, time.Minute)

	user := storagetest.NewUser("lee")
	require.NoError(t, store.CreateUser(ctx, user))
	key := storagetest.NewKey(t, user.ID, "k", time.Now())
	require.NoError(t, store.CreateAPIKey(ctx, key))

	for i := 0; i < 5; i++ {
		got, err := store.GetAPIKeyBySecret(ctx, key.Secret)
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
	}
	assert.Equal(t, 1, inner.lookups)
}

func TestMissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Storage: memory.New()}
	store := New(inner, time.Minute)

	user := storagetest.NewUser("mia")
	require.NoError(t, store.CreateUser(ctx, user))
	key := storagetest.NewKey(t, user.ID, "k", time.Now())

	_, err := store.GetAPIKeyBySecret(ctx, key.Secret)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.CreateAPIKey(ctx, key))
	_, err = store.GetAPIKeyBySecret(ctx, key.Secret)
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.lookups)
}

func TestRevokeEvicts(t *testing.T) {
	ctx := context.Background()
	store := New(memory.New(), time.Hour)

	user := storagetest.NewUser("ned")
	require.NoError(t, store.CreateUser(ctx, user))
	key := storagetest.NewKey(t, user.ID, "k", time.Now())
	require.NoError(t, store.CreateAPIKey(ctx, key))

	_, err := store.GetAPIKeyBySecret(ctx, key.Secret)
	require.NoError(t, err)

	require.NoError(t, store.DeleteAPIKeyForUser(ctx, user.ID, key.ID))

	_, err = store.GetAPIKeyBySecret(ctx, key.Secret)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
