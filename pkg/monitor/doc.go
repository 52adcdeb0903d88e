// Package monitor observes tenant cache behavior: rolling hit/miss counters,
// a bounded history of recent operation timings, and threshold alerts for
// slow resolutions, low hit ratios, high error rates and cache growth.
//
// The Recorder interface decouples the caches from the monitor; pass NoOp to
// disable instrumentation. Alerts of the same type are de-duplicated within a
// cooldown window so a sustained condition produces one alert per window
// instead of one per operation. Monitoring is strictly passive and never
// changes resolution outcomes.
//
// Counters are also exported as OpenTelemetry instruments on the global meter
// provider.
package monitor
