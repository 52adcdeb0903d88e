package platform_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/monitor"
	"github.com/dmitrymomot/multitenant/pkg/platform"
	"github.com/dmitrymomot/multitenant/pkg/resilience"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	tenants map[string]*tenant.Tenant
	err     error
	failN   int // fail the first N calls
	gate    chan struct{}
}

func (f *stubFetcher) FetchTenant(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failN >= f.calls {
		return nil, &platform.ResolutionError{Kind: platform.KindUnavailable, Subdomain: subdomain}
	}
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tenants[subdomain]
	if !ok {
		return nil, &platform.ResolutionError{Kind: platform.KindNotFound, Subdomain: subdomain}
	}
	return t, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testTenant(subdomain string) *tenant.Tenant {
	return &tenant.Tenant{ID: uuid.New(), Subdomain: subdomain, Name: subdomain + " inc", Active: true}
}

func testConfig() platform.Config {
	return platform.Config{
		CacheSize:             10,
		StaleThreshold:        time.Minute,
		MaxAge:                time.Hour,
		BreakerErrorThreshold: 5,
		BreakerResetTimeout:   time.Minute,
		Retry: resilience.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}
}

func TestResolutionClientResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("miss fetches and caches", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
		client := platform.NewResolutionClient(fetcher, testConfig())

		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Subdomain)
		assert.Equal(t, 1, fetcher.callCount())
		assert.Equal(t, 1, client.Stats().CacheEntries)
		assert.Equal(t, got, client.CurrentTenant())
	})

	t.Run("fresh hit skips the fetcher", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
		client := platform.NewResolutionClient(fetcher, testConfig())

		_, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)

		for range 5 {
			_, err := client.Resolve(ctx, "acme")
			require.NoError(t, err)
		}
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("concurrent misses join one fetch", func(t *testing.T) {
		t.Parallel()

		acme := testTenant("acme")
		gate := make(chan struct{})
		fetcher := &stubFetcher{
			tenants: map[string]*tenant.Tenant{"acme": acme},
			gate:    gate,
		}
		client := platform.NewResolutionClient(fetcher, testConfig())

		var wg sync.WaitGroup
		results := make([]*tenant.Tenant, 5)
		errs := make([]error, 5)
		for i := range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = client.Resolve(ctx, "acme")
			}()
		}

		// Let the resolvers pile up behind the in-flight fetch before
		// releasing it.
		time.Sleep(20 * time.Millisecond)
		close(gate)
		wg.Wait()

		for i := range 5 {
			require.NoError(t, errs[i])
			assert.Same(t, acme, results[i])
		}
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("invalid subdomain rejected without fetch", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{}
		client := platform.NewResolutionClient(fetcher, testConfig())

		for _, sub := range []string{"", "Bad_Sub", "-leading", "UPPER"} {
			_, err := client.Resolve(ctx, sub)
			var re *platform.ResolutionError
			require.ErrorAs(t, err, &re, "subdomain %q", sub)
			assert.Equal(t, platform.KindInvalidSubdomain, re.Kind)
		}
		assert.Zero(t, fetcher.callCount())
	})

	t.Run("not found fails without retries", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{}}
		client := platform.NewResolutionClient(fetcher, testConfig())

		_, err := client.Resolve(ctx, "ghost")
		var re *platform.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, platform.KindNotFound, re.Kind)
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("transient failures retried then succeed", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{
			tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")},
			failN:   2,
		}
		client := platform.NewResolutionClient(fetcher, testConfig())

		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Subdomain)
		assert.Equal(t, 3, fetcher.callCount())
	})

	t.Run("exhausted retries report the attempt", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{failN: 100}
		client := platform.NewResolutionClient(fetcher, testConfig())

		_, err := client.Resolve(ctx, "acme")
		var re *platform.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, platform.KindUnavailable, re.Kind)
		assert.Equal(t, 3, re.Attempt)
		assert.Equal(t, 3, re.MaxAttempts)
		assert.Equal(t, 3, fetcher.callCount())
	})
}

func TestResolutionClientStaleWhileRevalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stale entry served while refreshing", func(t *testing.T) {
		t.Parallel()

		first := testTenant("acme")
		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": first}}

		cfg := testConfig()
		cfg.StaleThreshold = 30 * time.Millisecond
		cfg.MaxAge = time.Hour
		client := platform.NewResolutionClient(fetcher, cfg)

		_, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)

		// Age the entry past the stale threshold, swap the upstream value.
		time.Sleep(50 * time.Millisecond)
		updated := testTenant("acme")
		updated.Name = "Acme Renamed"
		fetcher.mu.Lock()
		fetcher.tenants["acme"] = updated
		fetcher.mu.Unlock()

		// Stale hit returns the old value immediately.
		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Same(t, first, got)

		// The background refresh lands the new value.
		assert.Eventually(t, func() bool {
			got, err := client.Resolve(ctx, "acme")
			return err == nil && got.Name == "Acme Renamed"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("concurrent stale hits trigger one refresh", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}

		cfg := testConfig()
		cfg.StaleThreshold = 10 * time.Millisecond
		client := platform.NewResolutionClient(fetcher, cfg)

		_, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, fetcher.callCount())

		time.Sleep(20 * time.Millisecond)

		// Gate the fetcher so the first refresh stays in flight while more
		// stale hits arrive.
		gate := make(chan struct{})
		fetcher.mu.Lock()
		fetcher.gate = gate
		fetcher.mu.Unlock()

		for range 5 {
			_, err := client.Resolve(ctx, "acme")
			require.NoError(t, err)
		}
		close(gate)

		assert.Eventually(t, func() bool {
			return fetcher.callCount() == 2
		}, time.Second, 5*time.Millisecond)

		// No extra refreshes sneak in afterwards.
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 2, fetcher.callCount())
	})

	t.Run("refresh honors the configured timeout", func(t *testing.T) {
		t.Parallel()

		first := testTenant("acme")
		fetcher := &slowFetcher{out: first}

		cfg := testConfig()
		cfg.StaleThreshold = 10 * time.Millisecond
		cfg.MaxAge = time.Hour
		cfg.RefreshTimeout = 20 * time.Millisecond
		cfg.Retry.MaxAttempts = 1
		client := platform.NewResolutionClient(fetcher, cfg)

		_, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, fetcher.callCount())

		// Age the entry, then make the upstream slower than the refresh
		// budget allows.
		time.Sleep(30 * time.Millisecond)
		updated := testTenant("acme")
		updated.Name = "Acme Renamed"
		fetcher.set(300*time.Millisecond, updated)

		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Same(t, first, got)

		// The refresh was attempted but timed out; the old value survives.
		time.Sleep(150 * time.Millisecond)
		got, err = client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, first.Name, got.Name)
		assert.GreaterOrEqual(t, fetcher.callCount(), 2)
	})
}

func TestResolutionClientRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("bypasses fresh cache", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
		client := platform.NewResolutionClient(fetcher, testConfig())

		_, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)

		updated := testTenant("acme")
		updated.Name = "Acme Renamed"
		fetcher.mu.Lock()
		fetcher.tenants["acme"] = updated
		fetcher.mu.Unlock()

		got, err := client.Refresh(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme Renamed", got.Name)
		assert.Equal(t, 2, fetcher.callCount())

		// The refreshed value is what subsequent resolves see.
		got, err = client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme Renamed", got.Name)
	})

	t.Run("invalid subdomain rejected", func(t *testing.T) {
		t.Parallel()

		client := platform.NewResolutionClient(&stubFetcher{}, testConfig())
		_, err := client.Refresh(ctx, "Bad_Sub")
		var re *platform.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, platform.KindInvalidSubdomain, re.Kind)
	})
}

func TestResolutionClientBreaker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("opens after consecutive failures and fails fast", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{failN: 1000}
		cfg := testConfig()
		cfg.BreakerErrorThreshold = 3
		cfg.BreakerResetTimeout = time.Hour
		cfg.Retry.MaxAttempts = 3
		client := platform.NewResolutionClient(fetcher, cfg)

		// First resolve burns through 3 attempts, tripping the breaker.
		_, err := client.Resolve(ctx, "acme")
		require.Error(t, err)
		require.Equal(t, 3, fetcher.callCount())
		assert.Equal(t, "open", client.Stats().Breaker.State)

		// Subsequent resolves are rejected without touching the fetcher.
		_, err = client.Resolve(ctx, "acme")
		require.Error(t, err)
		assert.True(t, resilience.IsCircuitOpen(err))
		assert.Equal(t, 3, fetcher.callCount())

		var re *platform.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, platform.KindUnavailable, re.Kind)
		assert.False(t, re.Retryable())
	})

	t.Run("not found does not trip the breaker", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
		cfg := testConfig()
		cfg.BreakerErrorThreshold = 2
		client := platform.NewResolutionClient(fetcher, cfg)

		// The API is healthy; the subdomains just don't exist.
		for range 5 {
			_, err := client.Resolve(ctx, "ghost")
			var re *platform.ResolutionError
			require.ErrorAs(t, err, &re)
			require.Equal(t, platform.KindNotFound, re.Kind)
		}

		assert.Equal(t, "closed", client.Stats().Breaker.State)

		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Subdomain)
	})

	t.Run("recovers through half-open probe", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{
			tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")},
			failN:   3,
		}
		cfg := testConfig()
		cfg.BreakerErrorThreshold = 3
		cfg.BreakerResetTimeout = 20 * time.Millisecond
		client := platform.NewResolutionClient(fetcher, cfg)

		_, err := client.Resolve(ctx, "acme")
		require.Error(t, err)

		time.Sleep(30 * time.Millisecond)

		// The probe succeeds and closes the breaker.
		got, err := client.Resolve(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Subdomain)
		assert.Equal(t, "closed", client.Stats().Breaker.State)
	})
}

func TestResolutionClientInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
	client := platform.NewResolutionClient(fetcher, testConfig())

	_, err := client.Resolve(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 1, client.Stats().CacheEntries)

	client.Invalidate("acme")
	assert.Zero(t, client.Stats().CacheEntries)

	_, err = client.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestResolutionClientDebugInfo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{
		"acme":  testTenant("acme"),
		"globe": testTenant("globe"),
	}}
	client := platform.NewResolutionClient(fetcher, testConfig())

	_, err := client.Resolve(ctx, "acme")
	require.NoError(t, err)
	_, err = client.Resolve(ctx, "globe")
	require.NoError(t, err)

	info := client.DebugInfo()
	require.Len(t, info, 2)
	subs := []string{info[0].Subdomain, info[1].Subdomain}
	assert.Contains(t, subs, "acme")
	assert.Contains(t, subs, "globe")
}

func TestResolutionClientPerformanceMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}

	t.Run("with monitor recorder", func(t *testing.T) {
		t.Parallel()

		mon, err := monitor.New(monitor.Config{
			HistorySize:             10,
			SlowResolutionThreshold: time.Hour,
			LowHitRatioThreshold:    -1,
			HighErrorRateThreshold:  -1,
			MaxCacheEntries:         1 << 30,
			AlertCooldown:           time.Minute,
			MinSamples:              1,
		})
		require.NoError(t, err)

		client := platform.NewResolutionClient(fetcher, testConfig(), platform.WithRecorder(mon))

		_, err = client.Resolve(ctx, "acme")
		require.NoError(t, err)
		_, err = client.Resolve(ctx, "acme")
		require.NoError(t, err)

		metrics := client.PerformanceMetrics()
		assert.Equal(t, uint64(1), metrics.Misses)
		assert.Equal(t, uint64(1), metrics.Hits)
		assert.Equal(t, 1, metrics.CacheEntries)
	})

	t.Run("without monitor recorder", func(t *testing.T) {
		t.Parallel()

		client := platform.NewResolutionClient(fetcher, testConfig())
		assert.Equal(t, monitor.Metrics{}, client.PerformanceMetrics())
	})
}

func TestResolutionClientRecorder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	fetcher := &stubFetcher{tenants: map[string]*tenant.Tenant{"acme": testTenant("acme")}}
	rec := &countingRecorder{}
	client := platform.NewResolutionClient(fetcher, testConfig(), platform.WithRecorder(rec))

	_, err := client.Resolve(ctx, "acme")
	require.NoError(t, err)
	_, err = client.Resolve(ctx, "acme")
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.misses.Load())
	assert.Equal(t, int64(1), rec.hits.Load())
}

// slowFetcher answers after a configurable delay and honors context
// cancellation, unlike stubFetcher's gate.
type slowFetcher struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	out   *tenant.Tenant
}

func (f *slowFetcher) FetchTenant(ctx context.Context, _ string) (*tenant.Tenant, error) {
	f.mu.Lock()
	f.calls++
	delay, out := f.delay, f.out
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
		return out, nil
	}
}

func (f *slowFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *slowFetcher) set(delay time.Duration, out *tenant.Tenant) {
	f.mu.Lock()
	f.delay = delay
	f.out = out
	f.mu.Unlock()
}

type countingRecorder struct {
	hits      atomic.Int64
	misses    atomic.Int64
	refreshes atomic.Int64
	evictions atomic.Int64
	errors    atomic.Int64
	trips     atomic.Int64
}

func (r *countingRecorder) Hit(time.Duration)               { r.hits.Add(1) }
func (r *countingRecorder) Miss(time.Duration)              { r.misses.Add(1) }
func (r *countingRecorder) BackgroundRefresh(time.Duration) { r.refreshes.Add(1) }
func (r *countingRecorder) Eviction()                       { r.evictions.Add(1) }
func (r *countingRecorder) Error(bool)                      { r.errors.Add(1) }
func (r *countingRecorder) BreakerTrip()                    { r.trips.Add(1) }
func (r *countingRecorder) CacheSize(int)                   {}
