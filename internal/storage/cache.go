package storage

import (
	"container/list"
	"sync"
	"time"

	"ops_gateway/internal/models"
)

type apiKeyEntry struct {
	hash      string
	key       *models.APIKey
	expiresAt time.Time
}

// APIKeyCache keeps recently authenticated API keys in memory, keyed
// by key hash, so the hot path does not hit Postgres on every request.
// Entries expire after a TTL and are evicted LRU once the cache fills.
// Revocations observed by this process invalidate the entry; other
// processes converge when the TTL lapses.
type APIKeyCache struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	entries      map[string]*list.Element
	evictionList *list.List
}

// NewAPIKeyCache creates an API key cache with the given capacity and TTL
func NewAPIKeyCache(capacity int, ttl time.Duration) *APIKeyCache {
	return &APIKeyCache{
		capacity:     capacity,
		ttl:          ttl,
		entries:      make(map[string]*list.Element, capacity),
		evictionList: list.New(),
	}
}

// Get returns the cached key for a hash, if present and not expired
func (c *APIKeyCache) Get(keyHash string) (*models.APIKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.entries[keyHash]
	if !found {
		return nil, false
	}

	entry := elem.Value.(*apiKeyEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.evictionList.MoveToFront(elem)
	return entry.key, true
}

// Put caches a key under its hash, refreshing the TTL on update
func (c *APIKeyCache) Put(keyHash string, key *models.APIKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if elem, found := c.entries[keyHash]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*apiKeyEntry)
		entry.key = key
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&apiKeyEntry{
		hash:      keyHash,
		key:       key,
		expiresAt: expiresAt,
	})
	c.entries[keyHash] = elem

	if c.evictionList.Len() > c.capacity {
		if oldest := c.evictionList.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate drops a cached key, e.g. after it is disabled
func (c *APIKeyCache) Invalidate(keyHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.entries[keyHash]; found {
		c.removeElement(elem)
	}
}

// Len returns the current number of cached keys
func (c *APIKeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

func (c *APIKeyCache) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	entry := elem.Value.(*apiKeyEntry)
	delete(c.entries, entry.hash)
}

// CleanupExpired removes expired entries; called periodically so stale
// keys do not linger until their LRU slot is reused
func (c *APIKeyCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = next {
		next = elem.Prev()
		entry := elem.Value.(*apiKeyEntry)

		if now.After(entry.expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}

	return removed
}
