// Package cache decorates a storage.Storage with an in-process cache of
// key-secret lookups, the hottest read on the public API path.
package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
)

// Store caches successful GetAPIKeyBySecret results for a fixed TTL.
// Misses are never cached, so a freshly issued key resolves at once.
// Revocations made through this Store evict immediately; revocations made by
// another process are observed once the entry expires.
type Store struct {
	storage.Storage
	keys *cache.Cache
}

// New wraps next with a key cache whose entries live for ttl.
func New(next storage.Storage, ttl time.Duration) *Store {
	return &Store{
		Storage: next,
		keys:    cache.New(ttl, 2*ttl),
	}
}

func (s *Store) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	if cached, found := s.keys.Get(secret); found {
		k := cached.(domain.APIKey)
		return &k, nil
	}

	key, err := s.Storage.GetAPIKeyBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	s.keys.Set(secret, *key, cache.DefaultExpiration)
	return key, nil
}

func (s *Store) DeleteAPIKeyForUser(ctx context.Context, userID, id string) error {
	if err := s.Storage.DeleteAPIKeyForUser(ctx, userID, id); err != nil {
		return err
	}
	for secret, item := range s.keys.Items() {
		if k, ok := item.Object.(domain.APIKey); ok && k.ID == id {
			s.keys.Delete(secret)
		}
	}
	return nil
}
