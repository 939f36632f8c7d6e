package domain

import "time"

// APIKey is a bearer credential owned by exactly one user.
// The secret is only returned once, on issuance.
type APIKey struct {
	ID        string    `json:"id" db:"id" firestore:"-"`
	UserID    string    `json:"userId" db:"user_id" firestore:"userId"`
	Name      string    `json:"name" db:"name" firestore:"name"`
	Secret    string    `json:"-" db:"secret" firestore:"key"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" firestore:"createdAt"`
}

// CreateAPIKeyRequest is the request body for issuing an API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// IssuedAPIKey is returned when issuing an API key.
// It is the only shape that carries the secret.
type IssuedAPIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIKeySummary is the listing shape of an API key.
type APIKeySummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	KeyPreview string    `json:"keyPreview"`
	CreatedAt  time.Time `json:"createdAt"`
}

// APIKeyList wraps the listing response.
type APIKeyList struct {
	Keys []APIKeySummary `json:"keys"`
}
