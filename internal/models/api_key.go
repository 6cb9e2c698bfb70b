package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// APIKey represents a gateway API key as stored in the database.
// The plaintext key is never stored; lookup is by SHA256 hash.
type APIKey struct {
	ID                 uuid.UUID      `db:"id"`
	Name               string         `db:"name"`
	KeyHash            string         `db:"key_hash"`
	AllowedActions     pq.StringArray `db:"allowed_actions"` // empty = all actions
	RateLimitPerMinute int            `db:"rate_limit_per_minute"`
	Enabled            bool           `db:"enabled"`
	ExpiresAt          *time.Time     `db:"expires_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// AllowsAction checks whether this key may invoke a given automation action
func (k *APIKey) AllowsAction(action string) bool {
	if len(k.AllowedActions) == 0 {
		return true
	}
	for _, a := range k.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// IsExpired checks if the key has expired
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// IsValid checks if the key is enabled and not expired
func (k *APIKey) IsValid() bool {
	return k.Enabled && !k.IsExpired()
}
