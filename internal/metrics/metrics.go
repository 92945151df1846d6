package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordIncidentProcessed(source, status string)
	RecordPipelineRun(source string, duration time.Duration)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	RecordQuote(model string)
	RecordRelevanceScored(score int)
	RecordUpload(status string)
	SetUploadQueueDepth(pending, active int)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordIncidentProcessed(source, status string)           {}
func (m *NoOpMetrics) RecordPipelineRun(source string, duration time.Duration) {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                    {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                  {}
func (m *NoOpMetrics) RecordQuote(model string)                                {}
func (m *NoOpMetrics) RecordRelevanceScored(score int)                         {}
func (m *NoOpMetrics) RecordUpload(status string)                              {}
func (m *NoOpMetrics) SetUploadQueueDepth(pending, active int)                 {}
func (m *NoOpMetrics) Handler() http.Handler                                   { return http.NotFoundHandler() }

// PrometheusMetrics records to a private registry exposed through Handler
type PrometheusMetrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	incidentsProcessed *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
	dbConnsActive      prometheus.Gauge
	dbQueries          *prometheus.CounterVec
	quotes             *prometheus.CounterVec
	relevanceScores    prometheus.Histogram
	uploads            *prometheus.CounterVec
	uploadQueueDepth   *prometheus.GaugeVec
}

// NewPrometheusMetrics creates and registers all collectors on registry.
// A nil registry gets a fresh one.
func NewPrometheusMetrics(registry *prometheus.Registry) (*PrometheusMetrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &PrometheusMetrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detecta",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "detecta",
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		incidentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detecta",
			Name:      "incidents_processed_total",
			Help:      "Incidents handled by the pipeline",
		}, []string{"source", "status"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "detecta",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of pipeline runs per source",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"source"}),
		dbConnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "detecta",
			Name:      "db_connections_active",
			Help:      "Acquired database connections",
		}),
		dbQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detecta",
			Name:      "db_queries_total",
			Help:      "Database operations by type and outcome",
		}, []string{"operation", "status"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detecta",
			Name:      "pricing_quotes_total",
			Help:      "Armed custody quotes computed",
		}, []string{"model"}),
		relevanceScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "detecta",
			Name:      "threat_relevance_score",
			Help:      "Distribution of computed relevance scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detecta",
			Name:      "uploads_total",
			Help:      "Upload queue items by final status",
		}, []string{"status"}),
		uploadQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "detecta",
			Name:      "upload_queue_items",
			Help:      "Upload queue items by state",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.incidentsProcessed, m.pipelineDuration,
		m.dbConnsActive, m.dbQueries, m.quotes, m.relevanceScores, m.uploads,
		m.uploadQueueDepth,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordIncidentProcessed(source, status string) {
	m.incidentsProcessed.WithLabelValues(source, status).Inc()
}

func (m *PrometheusMetrics) RecordPipelineRun(source string, duration time.Duration) {
	m.pipelineDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetDBConnectionsActive(count float64) {
	m.dbConnsActive.Set(count)
}

func (m *PrometheusMetrics) RecordDBQuery(operation, status string) {
	m.dbQueries.WithLabelValues(operation, status).Inc()
}

func (m *PrometheusMetrics) RecordQuote(model string) {
	m.quotes.WithLabelValues(model).Inc()
}

func (m *PrometheusMetrics) RecordRelevanceScored(score int) {
	m.relevanceScores.Observe(float64(score))
}

func (m *PrometheusMetrics) RecordUpload(status string) {
	m.uploads.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) SetUploadQueueDepth(pending, active int) {
	m.uploadQueueDepth.WithLabelValues("pending").Set(float64(pending))
	m.uploadQueueDepth.WithLabelValues("active").Set(float64(active))
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

var (
	mu            sync.RWMutex
	globalMetrics Metrics = &NoOpMetrics{}
)

// Init installs Prometheus metrics with Go runtime and process collectors.
// When disabled the no-op implementation stays in place.
func Init(enabled bool) error {
	if !enabled {
		Set(&NoOpMetrics{})
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := NewPrometheusMetrics(registry)
	if err != nil {
		return err
	}
	Set(m)
	return nil
}

// Set replaces the global metrics implementation
func Set(m Metrics) {
	mu.Lock()
	defer mu.Unlock()
	globalMetrics = m
}

func get() Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return globalMetrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return get().Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	get().RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordIncidentProcessed records incident processing metrics
func RecordIncidentProcessed(source, status string) {
	get().RecordIncidentProcessed(source, status)
}

// RecordPipelineRun records pipeline run metrics
func RecordPipelineRun(source string, duration time.Duration) {
	get().RecordPipelineRun(source, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	get().SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	get().RecordDBQuery(operation, status)
}

// RecordQuote counts a computed quote for the given pricing model
func RecordQuote(model string) {
	get().RecordQuote(model)
}

// RecordRelevanceScored observes a relevance score
func RecordRelevanceScored(score int) {
	get().RecordRelevanceScored(score)
}

// RecordUpload counts a finished upload by status
func RecordUpload(status string) {
	get().RecordUpload(status)
}

// SetUploadQueueDepth reports pending and active upload counts
func SetUploadQueueDepth(pending, active int) {
	get().SetUploadQueueDepth(pending, active)
}
