package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("sqlite3", ":memory:")
	require.NoError(t, err)
	return store
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return newTestStore(t)
	})
}

func TestDeleteRemovesUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	user := storagetest.NewUser("kim")
	require.NoError(t, store.CreateUser(ctx, user))
	key := storagetest.NewKey(t, user.ID, "k", time.Now())
	require.NoError(t, store.CreateAPIKey(ctx, key))
	require.NoError(t, store.IncrementUsage(ctx, key.ID, time.Now(), 5))

	require.NoError(t, store.DeleteAPIKeyForUser(ctx, user.ID, key.ID))

	var count int
	require.NoError(t, store.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM usage_records WHERE api_key_id = $1`, key.ID))
	assert.Zero(t, count)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.GetAPIKeyBySecret(ctx, "fk_whatever")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, store.IncrementUsage(ctx, "id", time.Now(), 1), domain.ErrUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrUnavailable)
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), domain.ErrAlreadyExists},
		{"postgres unique", errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`), domain.ErrAlreadyExists},
		{"other", errors.New("connection refused"), domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapError("op", tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
