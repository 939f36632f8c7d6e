package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
)

// Store is an in-memory implementation of the storage interface.
// It backs the tests and DB_DRIVER=memory.
type Store struct {
	mu sync.RWMutex

	users   map[string]*domain.User   // key: id
	apiKeys map[string]*domain.APIKey // key: id
	secrets map[string]string         // secret -> key id
	usage   map[usageKey]int64
}

type usageKey struct {
	keyID string
	day   string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:   make(map[string]*domain.User),
		apiKeys: make(map[string]*domain.APIKey),
		secrets: make(map[string]string),
		usage:   make(map[usageKey]int64),
	}
}

func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

// ============================================
// Users
// ============================================

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if user.Email != "" && existing.Email == user.Email {
			return domain.ErrAlreadyExists
		}
		if user.FirebaseUID != "" && existing.FirebaseUID == user.FirebaseUID {
			return domain.ErrAlreadyExists
		}
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return u.Email == email })
}

func (s *Store) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return u.FirebaseUID == uid })
}

func (s *Store) findUser(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if match(user) {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[key.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if _, exists := s.secrets[key.Secret]; exists {
		return domain.ErrAlreadyExists
	}
	k := *key
	s.apiKeys[key.ID] = &k
	s.secrets[key.Secret] = key.ID
	return nil
}

func (s *Store) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, exists := s.secrets[secret]
	if !exists {
		return nil, domain.ErrNotFound
	}
	k := *s.apiKeys[id]
	return &k, nil
}

func (s *Store) ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0)
	for _, key := range s.apiKeys {
		if key.UserID == userID {
			k := *key
			keys = append(keys, &k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *Store) DeleteAPIKeyForUser(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists || key.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	delete(s.secrets, key.Secret)
	for k := range s.usage {
		if k.keyID == id {
			delete(s.usage, k)
		}
	}
	return nil
}

// ============================================
// Usage
// ============================================

func (s *Store) IncrementUsage(ctx context.Context, keyID string, day time.Time, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[usageKey{keyID: keyID, day: domain.Day(day).Format(domain.DayLayout)}] += delta
	return nil
}

func (s *Store) SumUsageByDay(ctx context.Context, keyIDs []string, since time.Time) ([]domain.DailyUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(keyIDs))
	for _, id := range keyIDs {
		wanted[id] = true
	}
	from := domain.Day(since).Format(domain.DayLayout)

	totals := make(map[string]int64)
	for k, count := range s.usage {
		if wanted[k.keyID] && k.day >= from {
			totals[k.day] += count
		}
	}

	result := make([]domain.DailyUsage, 0, len(totals))
	for day, count := range totals {
		result = append(result, domain.DailyUsage{Date: day, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}
