// Package resilience wraps the tenant resolution endpoint with retry and a
// circuit breaker.
//
// The breaker protects the single shared resolution endpoint: after a run of
// consecutive failures it fails fast instead of piling more load on a
// struggling dependency, then lets exactly one probe through after a cooldown.
//
// The retry executor layers exponential backoff with jitter on top, honoring
// server-provided Retry-After hints via the DelayHinter interface and
// consulting each error's Retryable classification. The backoff itself is a
// pure function (Delay) so the schedule is directly unit-testable.
package resilience
