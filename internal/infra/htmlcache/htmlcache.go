// Package htmlcache caches raw fetch bodies by URL so a source visited twice
// in the same run (or across closely spaced runs) does not pay for a second
// round trip.
package htmlcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is a cached fetch result.
type Entry struct {
	Body        []byte
	ContentType string
}

// Cache is the interface the engine depends on, letting a no-op
// implementation stand in when caching is disabled.
type Cache interface {
	Get(url string) (Entry, bool)
	Put(url string, e Entry)
}

// lruCache is an LRU cache with a per-entry TTL, backed by
// hashicorp/golang-lru's expirable variant.
type lruCache struct {
	cache *lru.LRU[string, Entry]
}

// New creates a Cache holding up to size entries, each expiring after ttl.
func New(size int, ttl time.Duration) Cache {
	return &lruCache{cache: lru.NewLRU[string, Entry](size, nil, ttl)}
}

func (c *lruCache) Get(url string) (Entry, bool) {
	return c.cache.Get(url)
}

func (c *lruCache) Put(url string, e Entry) {
	c.cache.Add(url, e)
}

// noop never caches anything; used when the engine is configured with
// caching disabled.
type noop struct{}

// NewNoop returns a Cache that always misses.
func NewNoop() Cache { return noop{} }

func (noop) Get(string) (Entry, bool) { return Entry{}, false }
func (noop) Put(string, Entry)        {}
