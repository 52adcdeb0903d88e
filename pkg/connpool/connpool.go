package connpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Handle is an open connection resource bound to one tenant's database.
// *pgxpool.Pool satisfies it; tests use lightweight fakes.
type Handle interface {
	Close()
}

// OpenFunc constructs a handle for a connection target. Construction
// failures are returned to the caller of Get and are never cached.
type OpenFunc func(ctx context.Context, connectionTarget string) (Handle, error)

type entry struct {
	handle     Handle
	lastUsedAt time.Time
}

// Cache is the process-wide map from tenant ID to a live connection handle.
// Handles are created lazily on first access, shared by all concurrent
// requests for the same tenant, and closed by the eviction sweep once idle
// past the configured threshold.
//
// Construct one Cache at process start and pass it to consumers.
type Cache struct {
	open   OpenFunc
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	// group collapses concurrent first-access construction per tenant so at
	// most one live handle ever exists for a tenant ID.
	group singleflight.Group

	onEvict func(tenantID uuid.UUID)

	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// New creates a connection cache and starts its eviction sweeper.
// Callers must Close the cache on shutdown.
func New(open OpenFunc, cfg Config, opts ...CacheOption) *Cache {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 30 * time.Minute
	}

	c := &Cache{
		open:    open,
		cfg:     cfg,
		logger:  slog.Default(),
		entries: make(map[uuid.UUID]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.sweep()
	return c
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used by the eviction sweeper.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEvictionHook registers a callback invoked after an entry is evicted,
// used to feed cache monitoring.
func WithEvictionHook(fn func(tenantID uuid.UUID)) CacheOption {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// Get returns the live handle for a tenant, constructing it on first access.
// Safe for concurrent use for the same and different tenant IDs: concurrent
// first access constructs exactly one handle.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID, connectionTarget string) (Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if e, ok := c.entries[tenantID]; ok {
		e.lastUsedAt = time.Now()
		h := e.handle
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	h, err, _ := c.group.Do(tenantID.String(), func() (any, error) {
		// Another caller may have populated the entry between the unlock
		// above and the singleflight slot becoming available.
		c.mu.Lock()
		if e, ok := c.entries[tenantID]; ok {
			e.lastUsedAt = time.Now()
			h := e.handle
			c.mu.Unlock()
			return h, nil
		}
		c.mu.Unlock()

		handle, err := c.open(ctx, connectionTarget)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			handle.Close()
			return nil, ErrCacheClosed
		}
		c.entries[tenantID] = &entry{handle: handle, lastUsedAt: time.Now()}
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return h.(Handle), nil
}

// Remove closes and forgets a tenant's handle. No-op when absent.
func (c *Cache) Remove(tenantID uuid.UUID) {
	c.mu.Lock()
	e, ok := c.entries[tenantID]
	if ok {
		delete(c.entries, tenantID)
	}
	c.mu.Unlock()

	if ok {
		e.handle.Close()
	}
}

// Len reports the number of live handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep periodically closes handles idle past the threshold. The threshold
// is expected to be well beyond any single request's duration, so a handle
// still in use is never selected.
func (c *Cache) sweep() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.evictIdle()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evictIdle() {
	cutoff := time.Now().Add(-c.cfg.IdleThreshold)

	c.mu.Lock()
	var evicted []uuid.UUID
	var handles []Handle
	for id, e := range c.entries {
		if e.lastUsedAt.Before(cutoff) {
			evicted = append(evicted, id)
			handles = append(handles, e.handle)
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	// Close outside the lock: pool teardown can block on in-flight queries.
	for i, id := range evicted {
		handles[i].Close()
		c.logger.Info("evicted idle tenant connection", "tenant_id", id.String())
		if c.onEvict != nil {
			c.onEvict(id)
		}
	}
}

// Close stops the sweeper and closes every cached handle.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[uuid.UUID]*entry)
	c.mu.Unlock()

	close(c.stop)
	<-c.done

	for _, e := range entries {
		e.handle.Close()
	}
	return nil
}

// ErrCacheClosed is returned by Get after Close.
var ErrCacheClosed = errors.New("connection cache is closed")
