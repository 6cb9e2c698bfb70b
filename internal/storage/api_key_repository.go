package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ops_gateway/internal/models"
)

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{
		db: db,
	}
}

// GetByHash retrieves an API key by its hash. Hot path for every
// authenticated request, so results are served from the LRU cache.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if key, found := r.db.apiKeyCache.Get(keyHash); found {
		return key, nil
	}

	var key models.APIKey
	query := `
		SELECT id, name, key_hash, allowed_actions, rate_limit_per_minute, enabled, expires_at, created_at, updated_at
		FROM api_keys
		WHERE key_hash = $1
	`

	err := r.db.conn.GetContext(ctx, &key, query, keyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	r.db.apiKeyCache.Put(keyHash, &key)
	return &key, nil
}

// Create creates a new API key
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, name, key_hash, allowed_actions, rate_limit_per_minute, enabled, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	err := r.db.conn.QueryRowContext(
		ctx, query,
		key.ID, key.Name, key.KeyHash, key.AllowedActions, key.RateLimitPerMinute, key.Enabled, key.ExpiresAt,
	).Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// Disable disables an API key and drops it from the cache
func (r *APIKeyRepository) Disable(ctx context.Context, id uuid.UUID) error {
	var keyHash string
	query := `
		UPDATE api_keys
		SET enabled = false, updated_at = NOW()
		WHERE id = $1
		RETURNING key_hash
	`

	err := r.db.conn.GetContext(ctx, &keyHash, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("failed to disable API key: %w", err)
	}

	r.db.apiKeyCache.Invalidate(keyHash)
	return nil
}
