// Package platform is the client side of tenant resolution: it asks the
// platform API which tenant a subdomain belongs to and caches the answer.
//
// The cache serves fresh entries directly and stale entries immediately while
// refreshing them in the background, so users see at most one slow resolution
// per cache lifetime. Eviction is LRU by last access within a fixed capacity.
//
// Fetches run through a retry executor with exponential backoff and a circuit
// breaker shared across all tenants, since they all hit the same endpoint.
// Failures are classified into kinds (network, not found, rate limited,
// unavailable, timeout, invalid subdomain) that drive both retry decisions
// and user-facing messages.
package platform
