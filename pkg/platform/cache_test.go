package platform

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

func cachedTenant(subdomain string) *tenant.Tenant {
	return &tenant.Tenant{ID: uuid.New(), Subdomain: subdomain, Name: subdomain, Active: true}
}

func TestSWRCacheFreshness(t *testing.T) {
	t.Parallel()

	c := newSWRCache(10, 50*time.Millisecond, 150*time.Millisecond, nil)

	c.put("acme", cachedTenant("acme"), time.Now())

	t.Run("fresh immediately after put", func(t *testing.T) {
		_, _, f, ok := c.get("acme")
		require.True(t, ok)
		assert.Equal(t, fresh, f)
	})

	t.Run("stale past the threshold", func(t *testing.T) {
		time.Sleep(60 * time.Millisecond)
		got, age, f, ok := c.get("acme")
		require.True(t, ok)
		assert.Equal(t, stale, f)
		assert.NotNil(t, got)
		assert.GreaterOrEqual(t, age, 50*time.Millisecond)
	})

	t.Run("expired past max age", func(t *testing.T) {
		time.Sleep(100 * time.Millisecond)
		_, _, _, ok := c.get("acme")
		assert.False(t, ok)
		assert.Zero(t, c.len())
	})
}

func TestSWRCacheLastWriterWins(t *testing.T) {
	t.Parallel()

	c := newSWRCache(10, time.Minute, time.Hour, nil)

	older := time.Now().Add(-10 * time.Second)
	newer := time.Now()

	newTenant := cachedTenant("acme")
	c.put("acme", newTenant, newer)

	// A slow refresh that started earlier must not clobber the newer value.
	c.put("acme", cachedTenant("acme"), older)

	got, _, _, ok := c.get("acme")
	require.True(t, ok)
	assert.Same(t, newTenant, got)
}

func TestSWRCacheLRUEviction(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := newSWRCache(3, time.Minute, time.Hour, func(subdomain string) {
		evicted = append(evicted, subdomain)
	})

	now := time.Now()
	c.put("a", cachedTenant("a"), now)
	c.put("b", cachedTenant("b"), now)
	c.put("c", cachedTenant("c"), now)

	// Touch "a" so "b" becomes the least recently accessed.
	_, _, _, ok := c.get("a")
	require.True(t, ok)

	c.put("d", cachedTenant("d"), now)

	assert.Equal(t, []string{"b"}, evicted)
	_, _, _, ok = c.get("b")
	assert.False(t, ok)
	_, _, _, ok = c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, c.len())
}

func TestSWRCacheSnapshot(t *testing.T) {
	t.Parallel()

	c := newSWRCache(10, time.Minute, time.Hour, nil)
	now := time.Now()
	c.put("a", cachedTenant("a"), now)
	c.put("b", cachedTenant("b"), now)

	// Access "a" last so it leads the LRU order.
	_, _, _, _ = c.get("b")
	_, _, _, _ = c.get("a")

	info := c.snapshot()
	require.Len(t, info, 2)
	assert.Equal(t, "a", info[0].Subdomain)
	assert.Equal(t, "b", info[1].Subdomain)
	assert.Equal(t, uint64(1), info[0].AccessCount)
	assert.False(t, info[0].Stale)
}

func TestSWRCacheRemove(t *testing.T) {
	t.Parallel()

	c := newSWRCache(10, time.Minute, time.Hour, nil)
	c.put("acme", cachedTenant("acme"), time.Now())

	c.remove("acme")
	_, _, _, ok := c.get("acme")
	assert.False(t, ok)

	assert.NotPanics(t, func() { c.remove("ghost") })
}
