// Package metrics exposes Prometheus collectors for the screenshot service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes recorded by ObserveBatch.
const (
	BatchCompleted   = "completed"
	BatchAborted     = "aborted"
	BatchSetupFailed = "setup_failed"
)

var (
	screenshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshot_screenshots_total",
			Help: "Total number of screenshot attempts, labeled by status.",
		},
		[]string{"status"},
	)

	screenshotDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webshot_screenshot_duration_seconds",
			Help:    "Histogram of per-URL capture latencies, labeled by status.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshot_batches_total",
			Help: "Total number of screenshot batches, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	batchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webshot_batch_duration_seconds",
			Help:    "Histogram of whole-batch latencies.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method", "route"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webshot_rate_limit_delays_seconds",
			Help:    "Histogram of per-host navigation budget waits.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	rateLimitHosts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webshot_rate_limit_hosts",
			Help: "Number of hosts currently holding a navigation budget bucket.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScreenshot records one per-URL capture attempt. Target hosts are
// client-controlled, so they never become label values.
func ObserveScreenshot(status string, duration time.Duration) {
	screenshotsTotal.WithLabelValues(status).Inc()
	screenshotDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveBatch increments the batch counter for the given outcome.
func ObserveBatch(outcome string) {
	batchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatchDuration records how long a whole batch took.
func ObserveBatchDuration(duration time.Duration) {
	batchDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a navigation budget wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}

// SetRateLimitHosts reports the current number of tracked hosts.
func SetRateLimitHosts(n int) {
	rateLimitHosts.Set(float64(n))
}
