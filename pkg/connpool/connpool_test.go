package connpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/connpool"
)

type fakeHandle struct {
	target string
	closed atomic.Bool
}

func (h *fakeHandle) Close() {
	h.closed.Store(true)
}

type fakeOpener struct {
	mu     sync.Mutex
	opens  int
	fail   error
	delay  time.Duration
	opened []*fakeHandle
}

func (o *fakeOpener) open(_ context.Context, target string) (connpool.Handle, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.fail != nil {
		return nil, o.fail
	}
	h := &fakeHandle{target: target}
	o.opened = append(o.opened, h)
	return h, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func newTestCache(t *testing.T, open connpool.OpenFunc, cfg connpool.Config, opts ...connpool.CacheOption) *connpool.Cache {
	t.Helper()

	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = time.Hour
	}
	c := connpool.New(open, cfg, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("constructs on first access and reuses", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open, connpool.Config{})
		id := uuid.New()

		first, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.NoError(t, err)

		second, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, opener.openCount())
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("separate handles per tenant", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open, connpool.Config{})

		h1, err := cache.Get(ctx, uuid.New(), "postgres://tenant-1")
		require.NoError(t, err)
		h2, err := cache.Get(ctx, uuid.New(), "postgres://tenant-2")
		require.NoError(t, err)

		assert.NotSame(t, h1, h2)
		assert.Equal(t, 2, opener.openCount())
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("concurrent first access constructs once", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{delay: 20 * time.Millisecond}
		cache := newTestCache(t, opener.open, connpool.Config{})
		id := uuid.New()

		const workers = 16
		handles := make([]connpool.Handle, workers)

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h, err := cache.Get(ctx, id, "postgres://tenant-1")
				assert.NoError(t, err)
				handles[i] = h
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, opener.openCount())
		for _, h := range handles[1:] {
			assert.Same(t, handles[0], h)
		}
	})

	t.Run("construction failure is not cached", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{fail: errors.New("connection refused")}
		cache := newTestCache(t, opener.open, connpool.Config{})
		id := uuid.New()

		_, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.Error(t, err)
		assert.Zero(t, cache.Len())

		// A subsequent attempt retries construction.
		opener.mu.Lock()
		opener.fail = nil
		opener.mu.Unlock()

		h, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.NoError(t, err)
		assert.NotNil(t, h)
		assert.Equal(t, 2, opener.openCount())
	})

	t.Run("closed cache rejects gets", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := connpool.New(opener.open, connpool.Config{SweepInterval: time.Hour, IdleThreshold: time.Hour})
		require.NoError(t, cache.Close())

		_, err := cache.Get(ctx, uuid.New(), "postgres://tenant-1")
		assert.ErrorIs(t, err, connpool.ErrCacheClosed)
	})
}

func TestCacheRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("closes and forgets", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open, connpool.Config{})
		id := uuid.New()

		h, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.NoError(t, err)

		cache.Remove(id)
		assert.True(t, h.(*fakeHandle).closed.Load())
		assert.Zero(t, cache.Len())
	})

	t.Run("no-op for unknown tenant", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open, connpool.Config{})

		assert.NotPanics(t, func() { cache.Remove(uuid.New()) })
	})
}

func TestCacheEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("idle handles are swept", func(t *testing.T) {
		t.Parallel()

		var evicted atomic.Int64
		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open,
			connpool.Config{SweepInterval: 10 * time.Millisecond, IdleThreshold: 20 * time.Millisecond},
			connpool.WithEvictionHook(func(uuid.UUID) { evicted.Add(1) }),
		)

		h, err := cache.Get(ctx, uuid.New(), "postgres://tenant-1")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return cache.Len() == 0 && h.(*fakeHandle).closed.Load() && evicted.Load() == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(1), evicted.Load())
	})

	t.Run("recently used handles survive the sweep", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := newTestCache(t, opener.open,
			connpool.Config{SweepInterval: 10 * time.Millisecond, IdleThreshold: time.Hour})
		id := uuid.New()

		_, err := cache.Get(ctx, id, "postgres://tenant-1")
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, cache.Len())
	})
}

func TestCacheClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("closes all handles", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := connpool.New(opener.open, connpool.Config{SweepInterval: time.Hour, IdleThreshold: time.Hour})

		h1, err := cache.Get(ctx, uuid.New(), "postgres://tenant-1")
		require.NoError(t, err)
		h2, err := cache.Get(ctx, uuid.New(), "postgres://tenant-2")
		require.NoError(t, err)

		require.NoError(t, cache.Close())
		assert.True(t, h1.(*fakeHandle).closed.Load())
		assert.True(t, h2.(*fakeHandle).closed.Load())
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		opener := &fakeOpener{}
		cache := connpool.New(opener.open, connpool.Config{SweepInterval: time.Hour, IdleThreshold: time.Hour})
		require.NoError(t, cache.Close())
		require.NoError(t, cache.Close())
	})
}
