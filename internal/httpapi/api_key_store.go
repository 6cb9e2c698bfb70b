package httpapi

import (
	"context"
	"fmt"

	"ops_gateway/internal/auth"
	"ops_gateway/internal/storage"
	"ops_gateway/internal/utils"
)

// DatabaseAPIKeyStore implements auth.APIKeyStore using the database repository
type DatabaseAPIKeyStore struct {
	repo *storage.APIKeyRepository
}

// NewDatabaseAPIKeyStore creates a new database-backed API key store
func NewDatabaseAPIKeyStore(repo *storage.APIKeyRepository) *DatabaseAPIKeyStore {
	return &DatabaseAPIKeyStore{
		repo: repo,
	}
}

// Lookup finds an API key by its plaintext value and returns an auth.APIKeyRecord
func (s *DatabaseAPIKeyStore) Lookup(ctx context.Context, plaintextKey string) (*auth.APIKeyRecord, error) {
	hashedKey := utils.HashString(plaintextKey)

	// Repository lookup goes through the LRU cache
	apiKey, err := s.repo.GetByHash(ctx, hashedKey)
	if err != nil {
		if err == storage.ErrAPIKeyNotFound {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to lookup API key: %w", err)
	}

	record := &auth.APIKeyRecord{
		ID:                 apiKey.ID.String(),
		Name:               apiKey.Name,
		AllowedActions:     []string(apiKey.AllowedActions),
		RateLimitPerMinute: apiKey.RateLimitPerMinute,
		Revoked:            !apiKey.Enabled || apiKey.IsExpired(), // Revoked if disabled or expired
	}

	return record, nil
}
