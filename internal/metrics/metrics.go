package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytfetch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7 minutes
		},
		[]string{"method", "endpoint"},
	)

	// Enumeration Metrics
	EnumerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_enumerations_total",
			Help: "Total number of option enumerations",
		},
		[]string{"status"},
	)

	// Fetch Metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_fetches_total",
			Help: "Total number of download requests",
		},
		[]string{"kind", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytfetch_fetch_duration_seconds",
			Help:    "Download request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
		},
		[]string{"kind"},
	)

	DownloadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytfetch_downloaded_bytes_total",
			Help: "Total bytes downloaded from upstream",
		},
	)

	// Transcoding Metrics
	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytfetch_transcode_duration_seconds",
			Help:    "Audio transcoding duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"quality"},
	)

	// Workspace Metrics
	WorkspacesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytfetch_workspaces_swept_total",
			Help: "Total number of stale workspaces removed",
		},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Side channel Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_storage_operations_total",
			Help: "Total number of artifact archive operations",
		},
		[]string{"operation", "status"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytfetch_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordEnumeration records an option enumeration
func RecordEnumeration(status string) {
	EnumerationsTotal.WithLabelValues(status).Inc()
}

// RecordFetch records a finished download request
func RecordFetch(kind, status string, duration float64) {
	FetchesTotal.WithLabelValues(kind, status).Inc()
	FetchDuration.WithLabelValues(kind).Observe(duration)
}

// RecordDownloadedBytes adds to the upstream byte counter
func RecordDownloadedBytes(n int64) {
	if n > 0 {
		DownloadedBytesTotal.Add(float64(n))
	}
}

// RecordTranscode records an audio transcode
func RecordTranscode(quality string, duration float64) {
	TranscodeDuration.WithLabelValues(quality).Observe(duration)
}

// RecordWorkspaceSweep records removed stale workspaces
func RecordWorkspaceSweep(removed int) {
	WorkspacesSweptTotal.Add(float64(removed))
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordStorageOperation records an artifact archive operation
func RecordStorageOperation(operation, status string) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
