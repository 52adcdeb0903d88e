package platform

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/multitenant/pkg/monitor"
	"github.com/dmitrymomot/multitenant/pkg/resilience"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

var subdomainRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// maxSubdomainLength matches the DNS label limit.
const maxSubdomainLength = 63

// ResolutionClient resolves subdomains to tenant metadata against the
// platform API, caching results with stale-while-revalidate semantics and
// shielding the API behind retry and a circuit breaker. Safe for concurrent
// use.
type ResolutionClient struct {
	fetcher        Fetcher
	cache          *swrCache
	breaker        *resilience.Breaker
	retryCfg       resilience.RetryConfig
	refreshTimeout time.Duration
	recorder       monitor.Recorder
	logger         *slog.Logger

	group singleflight.Group // joins concurrent miss fetches per subdomain

	mu       sync.Mutex
	inflight map[string]struct{} // subdomains with a background refresh running
	current  *tenant.Tenant      // last successfully resolved tenant
}

// ClientOption configures the resolution client.
type ClientOption func(*ResolutionClient)

// WithRecorder wires a cache performance recorder.
func WithRecorder(r monitor.Recorder) ClientOption {
	return func(c *ResolutionClient) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithClientLogger sets the logger for background refresh failures and
// breaker transitions.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *ResolutionClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewResolutionClient creates a resolution client around a fetcher,
// typically an *APIClient built from the same Config.
func NewResolutionClient(fetcher Fetcher, cfg Config, opts ...ClientOption) *ResolutionClient {
	c := &ResolutionClient{
		fetcher:        fetcher,
		retryCfg:       cfg.Retry,
		refreshTimeout: cfg.RefreshTimeout,
		recorder:       monitor.NoOp{},
		logger:         slog.Default(),
		inflight:       make(map[string]struct{}),
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cache = newSWRCache(cfg.CacheSize, cfg.StaleThreshold, cfg.MaxAge, func(string) {
		c.recorder.Eviction()
	})
	c.breaker = resilience.NewBreaker(cfg.BreakerErrorThreshold, cfg.BreakerResetTimeout,
		resilience.WithStateChangeHook(func(from, to resilience.State) {
			c.logger.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if to == resilience.StateOpen {
				c.recorder.BreakerTrip()
			}
		}),
	)
	return c
}

// Resolve returns the tenant for a subdomain. Fresh cache entries are served
// directly; stale entries are served immediately while a background refresh
// runs; misses and expired entries block on a fetch with retry and the
// circuit breaker. Concurrent misses for the same subdomain share a single
// in-flight fetch.
func (c *ResolutionClient) Resolve(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if !validSubdomain(subdomain) {
		return nil, &ResolutionError{Kind: KindInvalidSubdomain, Subdomain: subdomain}
	}

	if t, age, f, ok := c.cache.get(subdomain); ok {
		c.recorder.Hit(age)
		if f == stale {
			c.refreshAsync(subdomain)
		}
		c.setCurrent(t)
		return t, nil
	}

	v, err, _ := c.group.Do(subdomain, func() (any, error) {
		start := time.Now()
		t, err := c.fetch(ctx, subdomain)
		if err != nil {
			return nil, err
		}
		c.recorder.Miss(time.Since(start))
		c.store(subdomain, t, start)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tenant.Tenant), nil
}

// Refresh forces a fetch, bypassing the cache. The result replaces the
// cached entry unless a newer fetch already landed.
func (c *ResolutionClient) Refresh(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if !validSubdomain(subdomain) {
		return nil, &ResolutionError{Kind: KindInvalidSubdomain, Subdomain: subdomain}
	}

	start := time.Now()
	t, err := c.fetch(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	c.recorder.Miss(time.Since(start))
	c.store(subdomain, t, start)
	return t, nil
}

// Invalidate drops the cached entry for a subdomain.
func (c *ResolutionClient) Invalidate(subdomain string) {
	c.cache.remove(subdomain)
}

// CurrentTenant returns the most recently resolved tenant, or nil when
// nothing has been resolved yet.
func (c *ResolutionClient) CurrentTenant() *tenant.Tenant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ClientStats is a point-in-time view of the client internals.
type ClientStats struct {
	CacheEntries int
	Breaker      resilience.BreakerStats
}

// Stats returns cache and breaker state for monitoring.
func (c *ResolutionClient) Stats() ClientStats {
	return ClientStats{
		CacheEntries: c.cache.len(),
		Breaker:      c.breaker.Stats(),
	}
}

// DebugInfo lists cached entries, most recently accessed first.
func (c *ResolutionClient) DebugInfo() []EntryInfo {
	return c.cache.snapshot()
}

// PerformanceMetrics returns the monitor snapshot when the configured
// recorder is a *monitor.Monitor; zero metrics otherwise.
func (c *ResolutionClient) PerformanceMetrics() monitor.Metrics {
	if m, ok := c.recorder.(*monitor.Monitor); ok {
		return m.Snapshot()
	}
	return monitor.Metrics{}
}

// fetch runs one resolution through the breaker and the retry executor.
// Every attempt checks the breaker first; retryable failures count toward
// opening it. Errors carry the attempt number for logging and messages.
func (c *ResolutionClient) fetch(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	maxAttempts := c.retryCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	attempt := 0
	return resilience.Do(ctx, c.retryCfg, func(ctx context.Context) (*tenant.Tenant, error) {
		attempt++
		if !c.breaker.Allow() {
			return nil, &ResolutionError{
				Kind:        KindUnavailable,
				Subdomain:   subdomain,
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				Err:         resilience.ErrCircuitOpen,
			}
		}

		t, err := c.fetcher.FetchTenant(ctx, subdomain)
		if err != nil {
			// A healthy "not found" answer is not an upstream fault; only
			// retryable failures count toward opening the breaker.
			if resilience.IsRetryable(err) {
				c.breaker.RecordFailure()
			}
			c.recorder.Error(attempt > 1)
			if re, ok := err.(*ResolutionError); ok {
				re.Attempt = attempt
				re.MaxAttempts = maxAttempts
			}
			return nil, err
		}

		c.breaker.RecordSuccess()
		return t, nil
	})
}

// refreshAsync starts a background refresh for a stale entry, de-duplicating
// concurrent refreshes per subdomain. Failures are logged and recorded but
// never surfaced: the caller already has a usable stale value.
func (c *ResolutionClient) refreshAsync(subdomain string) {
	c.mu.Lock()
	if _, running := c.inflight[subdomain]; running {
		c.mu.Unlock()
		return
	}
	c.inflight[subdomain] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, subdomain)
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		start := time.Now()
		t, err := c.fetch(ctx, subdomain)
		if err != nil {
			c.logger.Error("background refresh failed",
				slog.String("subdomain", subdomain),
				slog.Any("error", err),
			)
			return
		}
		c.recorder.BackgroundRefresh(time.Since(start))
		c.store(subdomain, t, start)
	}()
}

// store writes a fetch result and reports the cache size.
func (c *ResolutionClient) store(subdomain string, t *tenant.Tenant, fetchStart time.Time) {
	c.cache.put(subdomain, t, fetchStart)
	c.recorder.CacheSize(c.cache.len())
	c.setCurrent(t)
}

func (c *ResolutionClient) setCurrent(t *tenant.Tenant) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func validSubdomain(subdomain string) bool {
	return subdomain != "" &&
		len(subdomain) <= maxSubdomainLength &&
		subdomainRegexp.MatchString(subdomain)
}
