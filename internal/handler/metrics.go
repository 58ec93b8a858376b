package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_http_requests_total",
			Help: "Total HTTP requests handled by the movie catalog.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	movieOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_operations_total",
			Help: "Movie lifecycle operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	blobCleanupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_blob_cleanup_failures_total",
			Help: "Uploaded images that could not be removed after their record went away.",
		},
		[]string{"reason"},
	)
)

// Metrics records request count and latency per route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		path := routeLabel(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// routeLabel returns the mux pattern that served r, so IDs and file names
// never become label values. The mux records the pattern on the request it
// was handed, which is the one this middleware passed down. Unmatched
// requests share the "other" label.
func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return "other"
	}
	if _, p, ok := strings.Cut(pattern, " "); ok {
		pattern = p
	}
	if pattern == "/{$}" {
		return "/"
	}
	return pattern
}

// MetricsRecorder feeds movie lifecycle outcomes into Prometheus. It
// satisfies service.LifecycleRecorder.
type MetricsRecorder struct{}

// Operation counts one create, update or delete.
func (MetricsRecorder) Operation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	movieOperationsTotal.WithLabelValues(op, result).Inc()
}

// CleanupFailed counts an image that was left behind.
func (MetricsRecorder) CleanupFailed(reason string) {
	blobCleanupFailuresTotal.WithLabelValues(reason).Inc()
}
