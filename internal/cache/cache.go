package cache

import (
	"sync"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

// DefaultTTL is the validity window applied when Set is called with a
// non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Stats reports the current cache size and the live keys. The sync layer uses
// Keys for prefix-based invalidation after writes.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Store is the TTL cache contract for fetched record lists. An entry is valid
// while now - insertion <= ttl; expired entries are purged lazily on the next
// access, never proactively. There is no capacity bound: the key corpus is
// one key per distinct endpoint and caller-controlled.
type Store interface {
	Get(key string) ([]models.WeatherRecord, bool)
	Set(key string, value []models.WeatherRecord, ttl time.Duration)
	Has(key string) bool
	Delete(key string)
	Clear()
	Stats() Stats
}

type entry struct {
	value      []models.WeatherRecord
	insertedAt time.Time
	ttl        time.Duration
}

// InMemoryCache implements Store with a mutex-guarded map. Safe for
// concurrent use by the HTTP handlers.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time // overridable in tests
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Get returns the value stored under key if present and unexpired. An expired
// entry is deleted and reported as a miss.
func (c *InMemoryCache) Get(key string) ([]models.WeatherRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > e.ttl {
		delete(c.data, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL (DefaultTTL when ttl <= 0).
// An existing entry is replaced, never mutated.
func (c *InMemoryCache) Set(key string, value []models.WeatherRecord, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, insertedAt: c.now(), ttl: ttl}
}

// Has reports liveness of key, applying the same lazy eviction as Get.
func (c *InMemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return false
	}
	if c.now().Sub(e.insertedAt) > e.ttl {
		delete(c.data, key)
		return false
	}
	return true
}

// Delete removes key.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear removes every entry.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
}

// Stats returns the size and live keys. Expired entries are purged while
// collecting so Keys never reports dead entries.
func (c *InMemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	keys := make([]string, 0, len(c.data))
	for k, e := range c.data {
		if now.Sub(e.insertedAt) > e.ttl {
			delete(c.data, k)
			continue
		}
		keys = append(keys, k)
	}
	return Stats{Size: len(keys), Keys: keys}
}
