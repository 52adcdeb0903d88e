package platform

import (
	"container/list"
	"sync"
	"time"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// freshness classifies a cached entry by age.
type freshness int

const (
	fresh freshness = iota
	stale
	expired
)

type cacheEntry struct {
	subdomain      string
	tenant         *tenant.Tenant
	cachedAt       time.Time
	lastAccessedAt time.Time
	accessCount    uint64
	elem           *list.Element
}

// swrCache is a bounded metadata cache with stale-while-revalidate
// semantics. Entries younger than staleThreshold are fresh, entries older
// than maxAge are expired, everything in between is stale and may be served
// while a background refresh runs. Eviction is LRU by last access, not by
// insertion order: a steadily used entry survives even when it is the oldest.
type swrCache struct {
	mu             sync.Mutex
	capacity       int
	staleThreshold time.Duration
	maxAge         time.Duration
	entries        map[string]*cacheEntry
	lru            *list.List // front = most recently accessed
	onEvict        func(subdomain string)
}

func newSWRCache(capacity int, staleThreshold, maxAge time.Duration, onEvict func(string)) *swrCache {
	if capacity <= 0 {
		capacity = 100
	}
	if staleThreshold <= 0 {
		staleThreshold = 5 * time.Minute
	}
	if maxAge <= staleThreshold {
		maxAge = 6 * staleThreshold
	}
	return &swrCache{
		capacity:       capacity,
		staleThreshold: staleThreshold,
		maxAge:         maxAge,
		entries:        make(map[string]*cacheEntry, capacity),
		lru:            list.New(),
		onEvict:        onEvict,
	}
}

// get returns the cached tenant and its freshness. Expired entries are
// removed and reported as misses. A hit updates the access time and moves
// the entry to the LRU front.
func (c *swrCache) get(subdomain string) (*tenant.Tenant, time.Duration, freshness, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[subdomain]
	if !ok {
		return nil, 0, expired, false
	}

	age := time.Since(e.cachedAt)
	if age >= c.maxAge {
		c.removeLocked(e)
		return nil, 0, expired, false
	}

	e.lastAccessedAt = time.Now()
	e.accessCount++
	c.lru.MoveToFront(e.elem)

	f := fresh
	if age >= c.staleThreshold {
		f = stale
	}
	return e.tenant, age, f, true
}

// put stores a fetch result. fetchedAt is when the fetch that produced the
// value started; a write whose fetch started before the stored entry's loses,
// so a slow background refresh cannot overwrite a newer forced refresh.
func (c *swrCache) put(subdomain string, t *tenant.Tenant, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[subdomain]; ok {
		if fetchedAt.Before(e.cachedAt) {
			return
		}
		e.tenant = t
		e.cachedAt = fetchedAt
		e.lastAccessedAt = time.Now()
		c.lru.MoveToFront(e.elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	e := &cacheEntry{
		subdomain:      subdomain,
		tenant:         t,
		cachedAt:       fetchedAt,
		lastAccessedAt: time.Now(),
	}
	e.elem = c.lru.PushFront(e)
	c.entries[subdomain] = e
}

// remove drops an entry regardless of age.
func (c *swrCache) remove(subdomain string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[subdomain]; ok {
		c.removeLocked(e)
	}
}

func (c *swrCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EntryInfo describes one cached entry for debugging.
type EntryInfo struct {
	Subdomain      string
	Age            time.Duration
	LastAccessedAt time.Time
	AccessCount    uint64
	Stale          bool
}

// snapshot returns entry details in LRU order, most recently accessed first.
func (c *swrCache) snapshot() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EntryInfo, 0, len(c.entries))
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*cacheEntry)
		age := time.Since(e.cachedAt)
		out = append(out, EntryInfo{
			Subdomain:      e.subdomain,
			Age:            age,
			LastAccessedAt: e.lastAccessedAt,
			AccessCount:    e.accessCount,
			Stale:          age >= c.staleThreshold,
		})
	}
	return out
}

// evictOldestLocked removes the least recently accessed entry; must hold the
// lock.
func (c *swrCache) evictOldestLocked() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeLocked(elem.Value.(*cacheEntry))
}

// removeLocked must hold the lock.
func (c *swrCache) removeLocked(e *cacheEntry) {
	c.lru.Remove(e.elem)
	delete(c.entries, e.subdomain)
	if c.onEvict != nil {
		c.onEvict(e.subdomain)
	}
}
