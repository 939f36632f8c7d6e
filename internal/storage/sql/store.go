package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapError maps driver errors onto domain errors. UNIQUE violations become
// domain.ErrAlreadyExists and everything else domain.ErrUnavailable.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, op, err)
}

// nullString stores empty optional columns as NULL so UNIQUE only applies to
// values that are actually set.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and applies pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite serialises writers anyway, and ":memory:" databases are per
	// connection.
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return wrapError("ping", s.db.PingContext(ctx))
}

// ============================================
// Users
// ============================================

const userColumns = `id, COALESCE(email, '') AS email, COALESCE(firebase_uid, '') AS firebase_uid,
	name, COALESCE(password_hash, '') AS password_hash, created_at`

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, firebase_uid, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, nullString(user.Email), nullString(user.FirebaseUID), user.Name,
		nullString(user.PasswordHash), user.CreatedAt)
	return wrapError("create user", err)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapError("get user", err)
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.getUser(ctx, "firebase_uid", uid)
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, secret, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.UserID, key.Name, key.Secret, key.CreatedAt)
	return wrapError("create api key", err)
}

func (s *Store) GetAPIKeyBySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, user_id, name, secret, created_at FROM api_keys WHERE secret = $1`, secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapError("get api key", err)
	}
	return &key, nil
}

func (s *Store) ListAPIKeysForUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, user_id, name, secret, created_at FROM api_keys
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrapError("list api keys", err)
	}
	return keys, nil
}

func (s *Store) DeleteAPIKeyForUser(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapError("begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapError("delete api key", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapError("delete api key", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_records WHERE api_key_id = $1`, id); err != nil {
		return wrapError("delete usage records", err)
	}

	return wrapError("commit", tx.Commit())
}

// ============================================
// Usage
// ============================================

func (s *Store) IncrementUsage(ctx context.Context, keyID string, day time.Time, delta int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (api_key_id, day, count) VALUES ($1, $2, $3)
		 ON CONFLICT (api_key_id, day) DO UPDATE SET count = usage_records.count + excluded.count`,
		keyID, domain.Day(day).Format(domain.DayLayout), delta)
	return wrapError("increment usage", err)
}

func (s *Store) SumUsageByDay(ctx context.Context, keyIDs []string, since time.Time) ([]domain.DailyUsage, error) {
	result := []domain.DailyUsage{}
	if len(keyIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		`SELECT day, SUM(count) AS count FROM usage_records
		 WHERE api_key_id IN (?) AND day >= ?
		 GROUP BY day ORDER BY day ASC`,
		keyIDs, domain.Day(since).Format(domain.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("building usage query: %w", err)
	}

	if err := s.db.SelectContext(ctx, &result, s.db.Rebind(query), args...); err != nil {
		return nil, wrapError("sum usage", err)
	}
	return result, nil
}
