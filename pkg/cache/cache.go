// Package cache is a process-local TTL cache used for wallet lookups,
// derivation index seeds and HTTP response caching.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// HTTPResponseTTL is the fixed lifetime of cached HTTP responses.
const HTTPResponseTTL = 5 * time.Minute

// Cache is a keyed TTL map. Expired entries are evicted lazily on Get, there
// is no background janitor and no LRU bound.
type Cache struct {
	prefix string
	store  *gocache.Cache
}

// New returns a cache where Set without an explicit TTL uses defaultTTL.
// The prefix namespaces keys so several components can share one instance.
func New(defaultTTL time.Duration, prefix string) *Cache {
	return &Cache{
		prefix: prefix,
		store:  gocache.New(defaultTTL, 0),
	}
}

// Get returns the value for key, or false on miss or past-expiry.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(c.prefix + key)
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(c.prefix+key, value, gocache.DefaultExpiration)
}

// SetTTL stores value under key with an explicit TTL. Zero means no expiry.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(c.prefix+key, value, ttl)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.store.Delete(c.prefix + key)
}

// Flush drops all entries.
func (c *Cache) Flush() {
	c.store.Flush()
}
