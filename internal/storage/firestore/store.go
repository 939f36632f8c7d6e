// Package firestore implements storage.Storage on Cloud Firestore.
//
// Collections:
//
//	users/{id}                   user documents
//	userEmails/{enc(email)}      uniqueness index, {userId}
//	userFirebaseUids/{enc(uid)}  uniqueness index, {userId}
//	apiKeys/{id}                 key documents, secret stored in "key"
//	apiKeySecrets/{secret}       uniqueness index, {apiKeyId}
//	usage/{keyId}_{day}          daily counters, {apiKeyId, day, count}
//
// Index documents are created in the same transaction as the record they
// guard, so a duplicate makes the whole transaction fail with AlreadyExists.
package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bcnelson/free-api/internal/domain"
)

const (
	colUsers        = "users"
	colUserEmails   = "userEmails"
	colUserUIDs     = "userFirebaseUids"
	colAPIKeys      = "apiKeys"
	colAPIKeySecret = "apiKeySecrets"
	colUsage        = "usage"

	// maxInValues is Firestore's limit on values in an "in" filter.
	maxInValues = 30
)

// Store implements the storage.Storage interface on Firestore.
type Store struct {
	client *firestore.Client
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for background cleanup failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Firestore store from a Firebase app.
func New(ctx context.Context, app *firebase.App, opts ...Option) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing Firestore client.
func NewWithClient(client *firestore.Client, opts ...Option) *Store {
	s := &Store{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping performs a cheap read to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(colUsers).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return wrapError("ping", err)
	}
	return nil
}

// wrapError maps gRPC status codes onto domain errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return domain.ErrNotFound
	case codes.AlreadyExists:
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, op, err)
}

// indexID encodes an arbitrary string into a valid document ID.
func indexID(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func usageDocID(keyID, day string) string {
	return keyID + "_" + day
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// ============================================
// Users
// ============================================

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if user.Email != "" {
			ref := s.client.Collection(colUserEmails).Doc(indexID(user.Email))
			if err := tx.Create(ref, map[string]any{"userId": user.ID}); err != nil {
				return err
			}
		}
		if user.FirebaseUID != "" {
			ref := s.client.Collection(colUserUIDs).Doc(indexID(user.FirebaseUID))
			if err := tx.Create(ref, map[string]any{"userId": user.ID}); err != nil {
				return err
			}
		}
		return tx.Create(s.client.Collection(colUsers).Doc(user.ID), user)
	})
	return wrapError("create user", err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	doc, err := s.client.Collection(colUsers).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrapError("get user", err)
	}
	return userFromDoc(doc)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserByIndex(ctx, colUserEmails, email)
}

func (s *Store) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.getUserByIndex(ctx, colUserUIDs, uid)
}

func (s *Store) getUserByIndex(ctx context.Context, collection, value string) (*domain.User, error) {
	doc, err := s.client.Collection(collection).Doc(indexID(value)).Get(ctx)
	if err != nil {
		return nil, wrapError("get user index", err)
	}
	userID, ok := doc.Data()["userId"].(string)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetUser(ctx, userID)
}

func userFromDoc(doc *firestore.DocumentSnapshot) (*domain.User, error) {
	var user domain.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", doc.Ref.ID, err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		secretRef := s.client.Collection(colAPIKeySecret).Doc(key.Secret)
		if err := tx.Create(secretRef, map[string]any{"apiKeyId": key.ID}); err != nil {
			return err
		}
		return tx.Create(s.client.Collection(colAPIKeys).Doc(key.ID), key)
	})
	return wrapError("create api key", err)
}

func (s *Store) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	iter := s.client.Collection(colAPIKeys).Where("key", "==", secret).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapError("get api key", err)
	}
	return apiKeyFromDoc(doc)
}

func (s *Store) ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	iter := s.client.Collection(colAPIKeys).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	keys := []*domain.APIKey{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapError("list api keys", err)
		}
		key, err := apiKeyFromDoc(doc)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	// Sorted here rather than with OrderBy to avoid a composite index.
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *Store) DeleteAPIKeyForUser(ctx context.Context, userID, id string) error {
	keyRef := s.client.Collection(colAPIKeys).Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(keyRef)
		if err != nil {
			return err
		}
		key, err := apiKeyFromDoc(doc)
		if err != nil {
			return err
		}
		if key.UserID != userID {
			return domain.ErrNotFound
		}
		if err := tx.Delete(s.client.Collection(colAPIKeySecret).Doc(key.Secret)); err != nil {
			return err
		}
		return tx.Delete(keyRef)
	})
	if err != nil {
		return wrapError("delete api key", err)
	}

	// The key is already revoked; leftover counters are only reported.
	if err := s.deleteUsage(ctx, id); err != nil {
		s.logger.Warn("usage cleanup after key revoke failed",
			zap.String("api_key_id", id),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Store) deleteUsage(ctx context.Context, keyID string) error {
	iter := s.client.Collection(colUsage).Where("apiKeyId", "==", keyID).Documents(ctx)
	defer iter.Stop()

	writer := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	var enqueueErr error
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			enqueueErr = err
			break
		}
		job, err := writer.Delete(doc.Ref)
		if err != nil {
			enqueueErr = err
			break
		}
		jobs = append(jobs, job)
	}
	writer.End()

	if enqueueErr != nil {
		return wrapError("delete usage", enqueueErr)
	}

	failed := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%w: delete usage: %d of %d deletes failed: %v",
			domain.ErrUnavailable, failed, len(jobs), firstErr)
	}
	return nil
}

func apiKeyFromDoc(doc *firestore.DocumentSnapshot) (*domain.APIKey, error) {
	var key domain.APIKey
	if err := doc.DataTo(&key); err != nil {
		return nil, fmt.Errorf("decoding api key %s: %w", doc.Ref.ID, err)
	}
	key.ID = doc.Ref.ID
	return &key, nil
}

// ============================================
// Usage
// ============================================

func (s *Store) IncrementUsage(ctx context.Context, keyID string, day time.Time, delta int64) error {
	d := domain.Day(day).Format(domain.DayLayout)
	_, err := s.client.Collection(colUsage).Doc(usageDocID(keyID, d)).Set(ctx, map[string]any{
		"apiKeyId": keyID,
		"day":      d,
		"count":    firestore.Increment(delta),
	}, firestore.MergeAll)
	return wrapError("increment usage", err)
}

func (s *Store) SumUsageByDay(ctx context.Context, keyIDs []string, since time.Time) ([]domain.DailyUsage, error) {
	from := domain.Day(since).Format(domain.DayLayout)
	totals := make(map[string]int64)

	for _, ids := range chunk(keyIDs, maxInValues) {
		iter := s.client.Collection(colUsage).
			Where("apiKeyId", "in", ids).
			Where("day", ">=", from).
			Documents(ctx)

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, wrapError("sum usage", err)
			}
			var rec struct {
				Day   string `firestore:"day"`
				Count int64  `firestore:"count"`
			}
			if err := doc.DataTo(&rec); err != nil {
				iter.Stop()
				return nil, fmt.Errorf("decoding usage %s: %w", doc.Ref.ID, err)
			}
			totals[rec.Day] += rec.Count
		}
		iter.Stop()
	}

	result := make([]domain.DailyUsage, 0, len(totals))
	for day, count := range totals {
		result = append(result, domain.DailyUsage{Date: day, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}
