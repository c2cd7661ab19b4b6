package reqflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for request metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeCacheHit  = "cache_hit"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle,
// caching and de-duplication. All recorders are nil-safe.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	dispatchesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dedupCancellations *prometheus.CounterVec
	pendingRequests    prometheus.Gauge

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_requests_total",
				Help: "Total number of settled requests by outcome",
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reqflow_request_duration_seconds",
				Help:    "Duration of requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reqflow_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		dispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_transport_dispatches_total",
				Help: "Total number of requests handed to the transport",
			},
			[]string{"method", "endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_cache_hits_total",
				Help: "Total number of cache hits by kind (settled or pending)",
			},
			[]string{"method", "endpoint", "kind"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		dedupCancellations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_dedup_cancellations_total",
				Help: "Total number of in-flight requests cancelled by an identical newer request",
			},
			[]string{"method", "endpoint"},
		),
		pendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reqflow_pending_requests",
				Help: "Number of requests tracked for de-duplication",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records a settled request.
func (mc *MetricsCollector) RecordRequest(method, endpoint, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.requestsTotal.WithLabelValues(method, endpoint, outcome).Inc()
	mc.requestDuration.WithLabelValues(method, endpoint, outcome).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordDispatch counts a transport round trip.
func (mc *MetricsCollector) RecordDispatch(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.dispatchesTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint, kind string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method, endpoint, kind).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordDedupCancellation counts a superseded request.
func (mc *MetricsCollector) RecordDedupCancellation(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.dedupCancellations.WithLabelValues(method, endpoint).Inc()
}

// RecordPendingRequests sets the tracked request gauge.
func (mc *MetricsCollector) RecordPendingRequests(n int) {
	if mc == nil {
		return
	}

	mc.pendingRequests.Set(float64(n))
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry, or nil when the
// collector was built on another Registerer.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
