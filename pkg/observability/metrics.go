package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the DCI server
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Index operation metrics
	PointsIndexed  prometheus.Counter
	QueriesTotal   prometheus.Counter
	IndexesCleared prometheus.Counter

	// Index state metrics
	IndexSize        *prometheus.GaugeVec
	IndexLevels      *prometheus.GaugeVec
	IndexMemoryBytes *prometheus.GaugeVec

	// Query metrics
	QueryLatency     prometheus.Histogram
	QueryBatchSize   prometheus.Histogram
	QueryResultSize  prometheus.Histogram
	ConstructionTime prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Tenant metrics
	NamespacesTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcidb_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dcidb_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcidb_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		PointsIndexed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dcidb_points_indexed_total",
				Help: "Total number of points added to indexes",
			},
		),
		QueriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dcidb_queries_total",
				Help: "Total number of query vectors processed",
			},
		),
		IndexesCleared: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dcidb_indexes_cleared_total",
				Help: "Total number of clear operations",
			},
		),

		IndexSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dcidb_index_size",
				Help: "Number of points in the index by namespace",
			},
			[]string{"namespace"},
		),
		IndexLevels: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dcidb_index_levels",
				Help: "Number of levels in the index hierarchy by namespace",
			},
			[]string{"namespace"},
		),
		IndexMemoryBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dcidb_index_memory_bytes",
				Help: "Memory usage of the index in bytes by namespace",
			},
			[]string{"namespace"},
		),

		QueryLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dcidb_query_latency_seconds",
				Help:    "Query latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		QueryBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dcidb_query_batch_size",
				Help:    "Number of query vectors per request",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500, 1000},
			},
		),
		QueryResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dcidb_query_result_size",
				Help:    "Number of real (non-sentinel) neighbours returned per query request",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200},
			},
		),
		ConstructionTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dcidb_construction_seconds",
				Help:    "Index construction duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dcidb_cache_hits_total",
				Help: "Total number of query cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dcidb_cache_misses_total",
				Help: "Total number of query cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dcidb_cache_size",
				Help: "Current number of entries in the query cache",
			},
		),

		NamespacesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dcidb_namespaces_total",
				Help: "Total number of active namespaces",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordAdd records an index construction
func (m *Metrics) RecordAdd(namespace string, points int, duration time.Duration) {
	m.PointsIndexed.Add(float64(points))
	m.ConstructionTime.Observe(duration.Seconds())
}

// RecordQuery records a query batch
func (m *Metrics) RecordQuery(duration time.Duration, batchSize, resultSize int) {
	m.QueriesTotal.Add(float64(batchSize))
	m.QueryLatency.Observe(duration.Seconds())
	m.QueryBatchSize.Observe(float64(batchSize))
	m.QueryResultSize.Observe(float64(resultSize))
}

// RecordClear records a clear operation
func (m *Metrics) RecordClear(namespace string) {
	m.IndexesCleared.Inc()
	m.IndexSize.WithLabelValues(namespace).Set(0)
	m.IndexLevels.WithLabelValues(namespace).Set(0)
	m.IndexMemoryBytes.WithLabelValues(namespace).Set(0)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates the cache size gauge
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// UpdateIndex updates the per-namespace index gauges
func (m *Metrics) UpdateIndex(namespace string, size, levels int, memoryBytes int64) {
	m.IndexSize.WithLabelValues(namespace).Set(float64(size))
	m.IndexLevels.WithLabelValues(namespace).Set(float64(levels))
	m.IndexMemoryBytes.WithLabelValues(namespace).Set(float64(memoryBytes))
}

// UpdateNamespaceCount updates the namespace count gauge
func (m *Metrics) UpdateNamespaceCount(count int) {
	m.NamespacesTotal.Set(float64(count))
}
