package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcnelson/free-api/internal/apikey"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/validation"
)

// maxIssueAttempts bounds retries when a generated secret collides.
const maxIssueAttempts = 3

// KeyService issues, lists and revokes API keys on behalf of their owner.
type KeyService struct {
	store    storage.Storage
	generate func() (string, error)
	now      func() time.Time
}

// NewKeyService creates a new KeyService.
func NewKeyService(store storage.Storage) *KeyService {
	return &KeyService{
		store:    store,
		generate: apikey.Generate,
		now:      time.Now,
	}
}

// Issue creates a key for ownerID. The returned value is the only place the
// secret is ever exposed.
func (s *KeyService) Issue(ctx context.Context, ownerID, name string) (*domain.IssuedAPIKey, error) {
	if err := validation.ValidateName("name", name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	var err error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		var secret string
		secret, err = s.generate()
		if err != nil {
			return nil, fmt.Errorf("generating api key: %w", err)
		}

		key := &domain.APIKey{
			ID:        uuid.New().String(),
			UserID:    ownerID,
			Name:      name,
			Secret:    secret,
			CreatedAt: s.now().UTC(),
		}

		err = s.store.CreateAPIKey(ctx, key)
		if err == nil {
			return &domain.IssuedAPIKey{
				ID:        key.ID,
				Name:      key.Name,
				Key:       key.Secret,
				CreatedAt: key.CreatedAt,
			}, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("storing api key: %w", err)
		}
	}
	return nil, fmt.Errorf("storing api key after %d attempts: %w", maxIssueAttempts, err)
}

// List returns ownerID's keys, newest first, with the secret masked.
func (s *KeyService) List(ctx context.Context, ownerID string) ([]domain.APIKeySummary, error) {
	keys, err := s.store.ListAPIKeysForUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}

	summaries := make([]domain.APIKeySummary, 0, len(keys))
	for _, k := range keys {
		summaries = append(summaries, domain.APIKeySummary{
			ID:         k.ID,
			Name:       k.Name,
			KeyPreview: apikey.MaskedPreview,
			CreatedAt:  k.CreatedAt,
		})
	}
	return summaries, nil
}

// Revoke deletes keyID if ownerID owns it. A missing key and a key owned by
// someone else produce the same error.
func (s *KeyService) Revoke(ctx context.Context, ownerID, keyID string) error {
	err := s.store.DeleteAPIKeyForUser(ctx, ownerID, keyID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, "API key not found")
	}
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	return nil
}
