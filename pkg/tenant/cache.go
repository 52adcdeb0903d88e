package tenant

import (
	"context"
	"sync"
	"time"
)

// Cache stores directory records keyed by subdomain so the resolver
// middleware can skip repeated directory lookups.
type Cache interface {
	// Get retrieves a cached record by subdomain.
	Get(ctx context.Context, subdomain string) (*Record, bool)

	// Set stores a record with the given TTL.
	Set(ctx context.Context, subdomain string, rec *Record, ttl time.Duration)

	// Delete removes a record from the cache.
	Delete(ctx context.Context, subdomain string)

	// Close releases any resources held by the cache.
	Close() error
}

// DefaultCacheSize bounds the in-memory directory cache.
const DefaultCacheSize = 1000

type memoryCacheItem struct {
	rec        *Record
	expiresAt  time.Time
	accessedAt time.Time
}

// memoryCache is the default in-memory directory cache: TTL expiry with a
// size bound enforced by evicting the least recently accessed entry.
type memoryCache struct {
	mu      sync.Mutex
	items   map[string]*memoryCacheItem
	maxSize int
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewMemoryCache creates an in-memory directory cache with automatic
// background cleanup of expired entries.
func NewMemoryCache(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	c := &memoryCache{
		items:   make(map[string]*memoryCacheItem),
		maxSize: maxSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *memoryCache) Get(_ context.Context, subdomain string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[subdomain]
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, subdomain)
		return nil, false
	}
	item.accessedAt = time.Now()
	return item.rec, true
}

func (c *memoryCache) Set(_ context.Context, subdomain string, rec *Record, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[subdomain]; !exists && len(c.items) >= c.maxSize {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.items[subdomain] = &memoryCacheItem{
		rec:        rec,
		expiresAt:  now.Add(ttl),
		accessedAt: now,
	}
}

func (c *memoryCache) Delete(_ context.Context, subdomain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, subdomain)
}

// evictOldestLocked removes the least recently accessed entry. Linear scan
// is acceptable at the directory-cache scale; must be called with the lock held.
func (c *memoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.accessedAt.Before(oldest) {
			oldestKey = key
			oldest = item.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// NoOpCache disables directory caching, useful for tests.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (*Record, bool) { return nil, false }

func (NoOpCache) Set(context.Context, string, *Record, time.Duration) {}

func (NoOpCache) Delete(context.Context, string) {}

func (NoOpCache) Close() error { return nil }
