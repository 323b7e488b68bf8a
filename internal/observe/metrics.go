// Package observe provides application-wide observability primitives for the
// bibliographic discovery service: OpenTelemetry metrics, distributed
// tracing, structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter as the meter provider's reader; this package
// registers no HTTP handler for scraping it. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/hagaybar/biblioplan"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// PlanCompileDuration tracks Plan Compiler latency (Stage A + Stage B,
	// cache misses only — see PlanCacheHits/Misses for cache-hit counts).
	PlanCompileDuration metric.Float64Histogram

	// ExecuteDuration tracks Executor latency: compiled SQL against the
	// index database through CandidateSet + Evidence assembly.
	ExecuteDuration metric.Float64Histogram

	// AggregateDuration tracks Aggregator latency for corpus exploration
	// queries.
	AggregateDuration metric.Float64Histogram

	// EnrichFetchDuration tracks a single Enrichment service lookup,
	// cache hit or external fetch alike.
	EnrichFetchDuration metric.Float64Histogram

	// --- Counters ---

	// PlanCacheHits counts Plan Cache lookups served from the cache.
	PlanCacheHits metric.Int64Counter

	// PlanCacheMisses counts Plan Cache lookups that fell through to
	// compilation.
	PlanCacheMisses metric.Int64Counter

	// EnrichmentCacheHits counts Enrichment service lookups served from the
	// cache table without an external fetch.
	EnrichmentCacheHits metric.Int64Counter

	// EnrichmentCacheMisses counts Enrichment service lookups that required
	// an external source fetch (or fell through to a terminal miss).
	EnrichmentCacheMisses metric.Int64Counter

	// RateLimitRejections counts requests rejected by the chat endpoint's
	// per-IP token bucket. Use with attribute: attribute.String("endpoint", ...).
	RateLimitRejections metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live dialogue sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// query-planning and database-bound request latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PlanCompileDuration, err = m.Float64Histogram("biblioplan.plan_compile.duration",
		metric.WithDescription("Latency of Plan Compiler runs (Stage A + Stage B) on a cache miss."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExecuteDuration, err = m.Float64Histogram("biblioplan.execute.duration",
		metric.WithDescription("Latency of Executor runs against the index database."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AggregateDuration, err = m.Float64Histogram("biblioplan.aggregate.duration",
		metric.WithDescription("Latency of Aggregator runs for corpus exploration queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnrichFetchDuration, err = m.Float64Histogram("biblioplan.enrich_fetch.duration",
		metric.WithDescription("Latency of a single Enrichment service lookup, cache hit or external fetch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PlanCacheHits, err = m.Int64Counter("biblioplan.plan_cache.hits",
		metric.WithDescription("Total Plan Cache lookups served from cache."),
	); err != nil {
		return nil, err
	}
	if met.PlanCacheMisses, err = m.Int64Counter("biblioplan.plan_cache.misses",
		metric.WithDescription("Total Plan Cache lookups that required compilation."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentCacheHits, err = m.Int64Counter("biblioplan.enrichment_cache.hits",
		metric.WithDescription("Total Enrichment lookups served from the cache table."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentCacheMisses, err = m.Int64Counter("biblioplan.enrichment_cache.misses",
		metric.WithDescription("Total Enrichment lookups that required an external source fetch."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitRejections, err = m.Int64Counter("biblioplan.rate_limit.rejections",
		metric.WithDescription("Total requests rejected by the per-IP rate limiter, by endpoint."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("biblioplan.active_sessions",
		metric.WithDescription("Number of live dialogue sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("biblioplan.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPlanCacheHit is a convenience method that records a Plan Cache hit.
func (m *Metrics) RecordPlanCacheHit(ctx context.Context) {
	m.PlanCacheHits.Add(ctx, 1)
}

// RecordPlanCacheMiss is a convenience method that records a Plan Cache miss.
func (m *Metrics) RecordPlanCacheMiss(ctx context.Context) {
	m.PlanCacheMisses.Add(ctx, 1)
}

// RecordEnrichmentCacheHit is a convenience method that records an
// Enrichment cache hit.
func (m *Metrics) RecordEnrichmentCacheHit(ctx context.Context) {
	m.EnrichmentCacheHits.Add(ctx, 1)
}

// RecordEnrichmentCacheMiss is a convenience method that records an
// Enrichment cache miss.
func (m *Metrics) RecordEnrichmentCacheMiss(ctx context.Context) {
	m.EnrichmentCacheMisses.Add(ctx, 1)
}

// RecordRateLimitRejection is a convenience method that records a rejected
// request for the given endpoint.
func (m *Metrics) RecordRateLimitRejection(ctx context.Context, endpoint string) {
	m.RateLimitRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("endpoint", endpoint)),
	)
}
