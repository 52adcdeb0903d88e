package monitor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dmitrymomot/multitenant/pkg/monitor"

type instruments struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	evictions    metric.Int64Counter
	errors       metric.Int64Counter
	trips        metric.Int64Counter
	resolutionMs metric.Float64Histogram
	refreshMs    metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	var (
		inst instruments
		err  error
	)

	if inst.hits, err = meter.Int64Counter("tenant_cache_hits_total",
		metric.WithDescription("Tenant metadata cache hits")); err != nil {
		return nil, err
	}
	if inst.misses, err = meter.Int64Counter("tenant_cache_misses_total",
		metric.WithDescription("Tenant metadata cache misses")); err != nil {
		return nil, err
	}
	if inst.evictions, err = meter.Int64Counter("tenant_cache_evictions_total",
		metric.WithDescription("Entries evicted from tenant caches")); err != nil {
		return nil, err
	}
	if inst.errors, err = meter.Int64Counter("tenant_resolution_errors_total",
		metric.WithDescription("Failed tenant resolution attempts")); err != nil {
		return nil, err
	}
	if inst.trips, err = meter.Int64Counter("tenant_breaker_trips_total",
		metric.WithDescription("Circuit breaker open transitions")); err != nil {
		return nil, err
	}
	if inst.resolutionMs, err = meter.Float64Histogram("tenant_resolution_duration_ms",
		metric.WithDescription("Tenant resolution latency on cache miss"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if inst.refreshMs, err = meter.Float64Histogram("tenant_refresh_duration_ms",
		metric.WithDescription("Background refresh latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return &inst, nil
}
