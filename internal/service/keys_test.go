package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/free-api/internal/apikey"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/storage/memory"
)

func TestIssueReturnsSecretOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewKeyService(store)

	issued, err := svc.Issue(ctx, "user-1", "  Production  ")
	require.NoError(t, err)
	assert.Equal(t, "Production", issued.Name)
	assert.True(t, apikey.ValidFormat(issued.Key))
	assert.NotEmpty(t, issued.ID)

	stored, err := store.GetAPIKeyBySecret(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)

	keys, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, apikey.MaskedPreview, keys[0].KeyPreview)
	assert.NotContains(t, keys[0].KeyPreview, issued.Key[3:])
}

func TestIssueValidatesName(t *testing.T) {
	svc := NewKeyService(memory.New())

	for _, name := range []string{"", "   ", strings.Repeat("x", 101)} {
		_, err := svc.Issue(context.Background(), "user-1", name)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "name %q", name)
	}
}

func TestIssueRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewKeyService(store)

	first, err := svc.Issue(ctx, "user-1", "first")
	require.NoError(t, err)

	secrets := []string{first.Key, first.Key, "fk_" + strings.Repeat("b", 32)}
	calls := 0
	svc.generate = func() (string, error) {
		s := secrets[calls]
		calls++
		return s, nil
	}

	second, err := svc.Issue(ctx, "user-1", "second")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, secrets[2], second.Key)
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	svc := NewKeyService(memory.New())

	first, err := svc.Issue(ctx, "user-1", "first")
	require.NoError(t, err)

	calls := 0
	svc.generate = func() (string, error) {
		calls++
		return first.Key, nil
	}

	_, err = svc.Issue(ctx, "user-1", "second")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, maxIssueAttempts, calls)
}

func TestListIsScopedAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewKeyService(memory.New())

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		_, err := svc.Issue(ctx, "owner", name)
		require.NoError(t, err)
	}
	_, err := svc.Issue(ctx, "someone-else", "d")
	require.NoError(t, err)

	keys, err := svc.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "c", keys[0].Name)
	assert.Equal(t, "a", keys[2].Name)

	keys, err = svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestRevokeIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	svc := NewKeyService(memory.New())

	issued, err := svc.Issue(ctx, "owner", "k")
	require.NoError(t, err)

	foreignErr := svc.Revoke(ctx, "intruder", issued.ID)
	missingErr := svc.Revoke(ctx, "owner", "no-such-id")
	require.ErrorIs(t, foreignErr, domain.ErrNotFound)
	require.ErrorIs(t, missingErr, domain.ErrNotFound)
	assert.Equal(t, foreignErr.Error(), missingErr.Error())

	require.NoError(t, svc.Revoke(ctx, "owner", issued.ID))
	assert.ErrorIs(t, svc.Revoke(ctx, "owner", issued.ID), domain.ErrNotFound)
}

// failingStore fails every key write.
type failingStore struct {
	storage.Storage
}

func (f failingStore) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return errors.Join(domain.ErrUnavailable, errors.New("disk on fire"))
}

func TestIssuePropagatesStoreFailure(t *testing.T) {
	svc := NewKeyService(failingStore{Storage: memory.New()})
	_, err := svc.Issue(context.Background(), "owner", "k")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
