package auth

import (
	"context"
	"errors"
	"slices"

	"ops_gateway/internal/utils"
)

// ErrKeyNotFound is returned when a plaintext key does not resolve to a record.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyRecord is the view of an API key needed at request time.
type APIKeyRecord struct {
	ID                 string
	Name               string
	AllowedActions     []string
	RateLimitPerMinute int
	Tags               map[string]string
	Revoked            bool
}

// AllowsAction checks whether this key may invoke a given automation action.
func (k *APIKeyRecord) AllowsAction(action string) bool {
	// If no actions configured, allow everything.
	if len(k.AllowedActions) == 0 {
		return true
	}
	return slices.Contains(k.AllowedActions, action)
}

// APIKeyStore resolves plaintext API keys into stored records.
type APIKeyStore interface {
	Lookup(ctx context.Context, plaintextKey string) (*APIKeyRecord, error)
}

// InMemoryAPIKeyStore is a store useful for local testing and development.
type InMemoryAPIKeyStore struct {
	// map of hash(API key) -> record
	keys map[string]*APIKeyRecord
}

func NewInMemoryAPIKeyStore() *InMemoryAPIKeyStore {
	s := &InMemoryAPIKeyStore{
		keys: make(map[string]*APIKeyRecord),
	}

	// Seed with a demo key: "demo-key"
	s.Add("demo-key", &APIKeyRecord{
		ID:             "demo-key-id",
		Name:           "Demo Key",
		AllowedActions: []string{}, // all actions
		Tags:           map[string]string{"env": "dev"},
		Revoked:        false,
	})

	return s
}

// Add registers a plaintext key with its record.
func (s *InMemoryAPIKeyStore) Add(plaintextKey string, rec *APIKeyRecord) {
	s.keys[utils.HashString(plaintextKey)] = rec
}

func (s *InMemoryAPIKeyStore) Lookup(ctx context.Context, plaintextKey string) (*APIKeyRecord, error) {
	hash := utils.HashString(plaintextKey)
	rec, ok := s.keys[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return rec, nil
}
