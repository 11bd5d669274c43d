// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditJobsTotal             *prometheus.CounterVec
	auditJobDurationSeconds    prometheus.Histogram
	auditActiveJobs            prometheus.Gauge
	auditQueueDepth            prometheus.Gauge
	auditCacheLookupsTotal     *prometheus.CounterVec
	auditRateLimitedTotal      prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_jobs_total",
				Help: "Total number of audit jobs settled, labeled by outcome.",
			},
			[]string{"status"},
		)

		auditJobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audit_job_duration_seconds",
				Help:    "Histogram of engine invocation durations.",
				Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90},
			},
		)

		auditActiveJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_active_jobs",
				Help: "Number of jobs currently occupying an active slot.",
			},
		)

		auditQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_queue_depth",
				Help: "Number of jobs waiting for a slot.",
			},
		)

		auditCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_cache_lookups_total",
				Help: "Total result cache lookups, labeled hit or miss.",
			},
			[]string{"result"},
		)

		auditRateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_rate_limited_total",
				Help: "Total requests rejected by the per-client rate limiter.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		ObserveHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ObserveJob increments the job counter for the given outcome.
func ObserveJob(status string) {
	auditJobsTotal.WithLabelValues(status).Inc()
}

// ObserveJobDuration records one engine invocation duration.
func ObserveJobDuration(d time.Duration) {
	auditJobDurationSeconds.Observe(d.Seconds())
}

// IncActiveJobs increments the active slot gauge.
func IncActiveJobs() {
	auditActiveJobs.Inc()
}

// DecActiveJobs decrements the active slot gauge.
func DecActiveJobs() {
	auditActiveJobs.Dec()
}

// SetQueueDepth records the current waiting-list length.
func SetQueueDepth(n int) {
	auditQueueDepth.Set(float64(n))
}

// ObserveCacheLookup increments the cache counter for a hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	auditCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimited increments the limiter rejection counter.
func ObserveRateLimited() {
	auditRateLimitedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
