package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS recommender_admin_keys (
    id           BIGSERIAL PRIMARY KEY,
    key_hash     TEXT NOT NULL UNIQUE,
    name         TEXT NOT NULL,
    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at   TIMESTAMPTZ,
    last_used_at TIMESTAMPTZ
)`

// Store keeps admin keys in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "apikey-store"),
	}
}

// EnsureSchema creates the key table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating admin key table: %w", err)
	}
	return nil
}

// Validate looks up an active key by digest and records its use.
func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)

	var (
		id        int64
		info      KeyInfo
		expiresAt sql.NullTime
		lastUsed  sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, expires_at, last_used_at
		 FROM recommender_admin_keys
		 WHERE key_hash = $1 AND is_active = TRUE`,
		hash,
	).Scan(&id, &info.Name, &info.IsActive, &info.CreatedAt, &expiresAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin key: %w", err)
	}
	info.ID = fmt.Sprint(id)
	if expiresAt.Valid {
		if expiresAt.Time.Before(time.Now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	if lastUsed.Valid {
		info.LastUsedAt = &lastUsed.Time
	}

	if _, err := s.db.DB.ExecContext(ctx,
		`UPDATE recommender_admin_keys SET last_used_at = NOW() WHERE id = $1`, id,
	); err != nil {
		s.logger.Warn("failed to record admin key use", "key_id", id, "error", err)
	}
	return &info, nil
}

// CreateKey stores a new key and returns the raw key, which is not
// retrievable afterwards. A zero ttl means the key never expires.
func (s *Store) CreateKey(ctx context.Context, name string, ttl time.Duration) (string, *KeyInfo, error) {
	raw, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}
	var expiry sql.NullTime
	if ttl > 0 {
		expiry = sql.NullTime{Time: time.Now().Add(ttl).UTC(), Valid: true}
	}

	var (
		id   int64
		info = KeyInfo{Name: name, IsActive: true}
	)
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO recommender_admin_keys (key_hash, name, expires_at)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		HashKey(raw), name, expiry,
	).Scan(&id, &info.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating admin key: %w", err)
	}
	info.ID = fmt.Sprint(id)
	if expiry.Valid {
		info.ExpiresAt = &expiry.Time
	}
	s.logger.Info("admin key created", "key_id", id, "name", name)
	return raw, &info, nil
}

// RevokeKey deactivates the key with the given id.
func (s *Store) RevokeKey(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE recommender_admin_keys SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id,
	)
	if err != nil {
		return fmt.Errorf("revoking admin key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("admin key revoked", "key_id", id)
	return nil
}

// ListKeys returns the active keys, newest first.
func (s *Store) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, is_active, created_at, expires_at, last_used_at
		 FROM recommender_admin_keys WHERE is_active = TRUE ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing admin keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var (
			id                  int64
			k                   KeyInfo
			expiresAt, lastUsed sql.NullTime
		)
		if err := rows.Scan(&id, &k.Name, &k.IsActive, &k.CreatedAt, &expiresAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning admin key row: %w", err)
		}
		k.ID = fmt.Sprint(id)
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		if lastUsed.Valid {
			k.LastUsedAt = &lastUsed.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
