// Package telemetry exposes Prometheus metrics for the audit pipeline
// and wires trace-context propagation for published events.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	auditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditor_audits_total",
			Help: "Total number of page audits, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	auditDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditor_audit_duration_seconds",
			Help:    "Histogram of full audit durations, labeled by site.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"site"},
	)

	auditScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditor_scores",
			Help:    "Distribution of overall compliance scores, labeled by grade.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"grade"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditor_cache_lookups_total",
			Help: "Result cache lookups, labeled by result (hit/miss).",
		},
		[]string{"result"},
	)

	batchActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auditor_batch_active_workers",
			Help: "Number of batch workers currently analysing a URL.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditor_rate_limit_delays_seconds",
			Help:    "Histogram of fetch rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SetupPropagation installs the W3C trace-context propagator used when
// stamping published events.
func SetupPropagation() {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		ObserveHTTPRequest(r.Method, route, ww.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// SanitizeSite extracts the hostname from a URL.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveAudit records the outcome and duration of one page audit.
func ObserveAudit(site, outcome string, duration time.Duration) {
	sanitized := SanitizeSite(site)
	auditsTotal.WithLabelValues(sanitized, outcome).Inc()
	auditDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveScore records an overall compliance score.
func ObserveScore(grade string, score int) {
	auditScores.WithLabelValues(grade).Observe(float64(score))
}

// ObserveCacheLookup records a result cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active batch worker count.
func IncActiveWorkers() {
	batchActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active batch worker count.
func DecActiveWorkers() {
	batchActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a fetch pacing wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
