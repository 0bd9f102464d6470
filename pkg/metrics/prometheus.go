// Package metrics provides Prometheus metrics for the pulseboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// MillisecondBuckets are the latency buckets for histograms observed in
// milliseconds.
var MillisecondBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // shared bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Polling
	pollsTotal        *prometheus.CounterVec
	pollErrors        *prometheus.CounterVec
	staleResponses    *prometheus.CounterVec
	fetchLatency      *prometheus.HistogramVec
	inflightFetches   *prometheus.GaugeVec
	seriesCount       *prometheus.GaugeVec
	pointsAppended    *prometheus.CounterVec
	dashboardsPolling prometheus.Gauge

	// Event bus and live stream
	busPublished     prometheus.Counter
	busDropped       prometheus.Counter
	busSubscribers   prometheus.Gauge
	websocketClients prometheus.Gauge

	// Proxy
	proxyRequests *prometheus.CounterVec
	proxyLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager with opts on a fresh registry.
// Call it once at startup, before anything records or reads GetRegistry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulseboard",
		subsystem:        "dashboard",
		histogramBuckets: MillisecondBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.pollsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("polls_total"),
		Help: "Total number of snapshots applied to a dashboard",
	}, []string{"dashboard"})

	m.pollErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("poll_errors_total"),
		Help: "Total number of failed polls by error kind",
	}, []string{"dashboard", "kind"})

	m.staleResponses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("stale_responses_total"),
		Help: "Total number of successful responses dropped because a newer one was already applied",
	}, []string{"dashboard"})

	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("fetch_latency_milliseconds"),
		Help:    "Snapshot fetch latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"dashboard"})

	m.inflightFetches = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("inflight_fetches"),
		Help: "Number of fetches issued but not yet completed",
	}, []string{"dashboard"})

	m.seriesCount = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("series"),
		Help: "Number of metric series tracked by a dashboard",
	}, []string{"dashboard"})

	m.pointsAppended = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("points_appended_total"),
		Help: "Total number of samples appended to series",
	}, []string{"dashboard"})

	m.dashboardsPolling = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("dashboards_polling"),
		Help: "Number of dashboards currently polling",
	})

	m.busPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("bus_published_total"),
		Help: "Total number of events published on the event bus",
	})

	m.busDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("bus_dropped_total"),
		Help: "Total number of events dropped for slow subscribers",
	})

	m.busSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("bus_subscribers"),
		Help: "Current number of event bus subscribers",
	})

	m.websocketClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("websocket_clients"),
		Help: "Current number of connected live stream clients",
	})

	m.proxyRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("proxy_requests_total"),
		Help: "Total number of proxied requests by outcome",
	}, []string{"outcome"})

	m.proxyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("proxy_upstream_latency_milliseconds"),
		Help:    "Upstream latency of proxied requests in milliseconds",
		Buckets: m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "Total number of errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_usage_bytes"),
		Help: "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutine_count"),
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_time_milliseconds"),
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often periodically sampled gauges should be updated.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the refresh interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// RecordPoll increments the applied snapshot counter for a dashboard.
func RecordPoll(dashboard string) {
	if !globalManager.enabled {
		return
	}
	globalManager.pollsTotal.WithLabelValues(dashboard).Inc()
}

// RecordPollError increments the failed poll counter for a dashboard and kind.
func RecordPollError(dashboard, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.pollErrors.WithLabelValues(dashboard, kind).Inc()
}

// RecordStaleResponse increments the dropped stale response counter.
func RecordStaleResponse(dashboard string) {
	if !globalManager.enabled {
		return
	}
	globalManager.staleResponses.WithLabelValues(dashboard).Inc()
}

// RecordFetchLatency records a snapshot fetch latency.
func RecordFetchLatency(dashboard string, latency time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchLatency.WithLabelValues(dashboard).Observe(float64(latency.Microseconds()) / 1000)
}

// AddInflightFetches adjusts the in-flight fetch gauge by delta.
func AddInflightFetches(dashboard string, delta int) {
	if !globalManager.enabled {
		return
	}
	globalManager.inflightFetches.WithLabelValues(dashboard).Add(float64(delta))
}

// UpdateSeriesCount sets the number of tracked series for a dashboard.
func UpdateSeriesCount(dashboard string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.seriesCount.WithLabelValues(dashboard).Set(float64(count))
}

// RecordPointsAppended adds n appended samples for a dashboard.
func RecordPointsAppended(dashboard string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pointsAppended.WithLabelValues(dashboard).Add(float64(n))
}

// UpdateDashboardsPolling sets the number of polling dashboards.
func UpdateDashboardsPolling(count int) {
	globalManager.dashboardsPolling.Set(float64(count))
}

// RecordBusPublish increments the published event counter.
func RecordBusPublish() {
	globalManager.busPublished.Inc()
}

// RecordBusDrop increments the dropped event counter.
func RecordBusDrop() {
	globalManager.busDropped.Inc()
}

// UpdateBusSubscribers sets the number of bus subscribers.
func UpdateBusSubscribers(count int) {
	globalManager.busSubscribers.Set(float64(count))
}

// AddWebsocketClients adjusts the connected websocket client gauge.
func AddWebsocketClients(delta int) {
	globalManager.websocketClients.Add(float64(delta))
}

// RecordProxyRequest increments the proxied request counter for an outcome.
func RecordProxyRequest(outcome string) {
	globalManager.proxyRequests.WithLabelValues(outcome).Inc()
}

// RecordProxyLatency records upstream latency of a proxied request.
func RecordProxyLatency(latency time.Duration) {
	globalManager.proxyLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
