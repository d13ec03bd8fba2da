package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

const keyPrefix = "weatherboard:"

// MemcachedCache implements Store using memcached, for running several
// dashboard instances against one cache. Memcached cannot enumerate its keys,
// so live keys are tracked locally per instance; Stats and the prefix
// invalidation built on it therefore see this instance's writes only.
// Memcached errors are logged and read as misses per the cache contract.
type MemcachedCache struct {
	client *memcache.Client
	logger *zap.Logger

	mu      sync.Mutex
	expires map[string]time.Time // local key -> expiry for Stats
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated
// server list; timeout and maxIdleConns use the client defaults when zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, logger *zap.Logger) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{
		client:  client,
		logger:  logger,
		expires: make(map[string]time.Time),
	}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Store.
func (c *MemcachedCache) Get(key string) ([]models.WeatherRecord, bool) {
	item, err := c.client.Get(keyPrefix + key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			c.logger.Warn("memcached get failed", zap.String("key", key), zap.Error(err))
		}
		c.untrack(key)
		return nil, false
	}
	var records []models.WeatherRecord
	if err := json.Unmarshal(item.Value, &records); err != nil {
		c.logger.Warn("memcached get: malformed entry", zap.String("key", key), zap.Error(err))
		c.untrack(key)
		return nil, false
	}
	return records, true
}

// Set implements Store.
func (c *MemcachedCache) Set(key string, value []models.WeatherRecord, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("memcached set: serialize failed", zap.String("key", key), zap.Error(err))
		return
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 {
		expSec = 1
	}
	if err := c.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      raw,
		Expiration: expSec,
	}); err != nil {
		c.logger.Warn("memcached set failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.expires[key] = time.Now().Add(ttl)
	c.mu.Unlock()
}

// Has implements Store.
func (c *MemcachedCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete implements Store.
func (c *MemcachedCache) Delete(key string) {
	if err := c.client.Delete(keyPrefix + key); err != nil && err != memcache.ErrCacheMiss {
		c.logger.Warn("memcached delete failed", zap.String("key", key), zap.Error(err))
	}
	c.untrack(key)
}

// Clear implements Store. Deletes the keys this instance has tracked;
// memcached offers no namespaced flush.
func (c *MemcachedCache) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.expires))
	for k := range c.expires {
		keys = append(keys, k)
	}
	c.expires = make(map[string]time.Time)
	c.mu.Unlock()
	for _, k := range keys {
		if err := c.client.Delete(keyPrefix + k); err != nil && err != memcache.ErrCacheMiss {
			c.logger.Warn("memcached clear: delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// Stats implements Store using the locally tracked keys, pruning past-expiry
// entries the same way the in-memory backend does.
func (c *MemcachedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(c.expires))
	for k, exp := range c.expires {
		if now.After(exp) {
			delete(c.expires, k)
			continue
		}
		keys = append(keys, k)
	}
	return Stats{Size: len(keys), Keys: keys}
}

func (c *MemcachedCache) untrack(key string) {
	c.mu.Lock()
	delete(c.expires, key)
	c.mu.Unlock()
}

// Ping checks if memcached is reachable. Called once at startup; a failure
// is logged, not fatal, since every cache operation degrades to a miss.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
