// Package metrics exposes Prometheus collectors for the ingest service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes for ObserveRow.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeBlocked  = "blocked"
)

var (
	ingestRowsTotal            *prometheus.CounterVec
	renderDurationSeconds      *prometheus.HistogramVec
	renderFailuresTotal        *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	adapterFailuresTotal       *prometheus.CounterVec
	snapshotsTotal             *prometheus.CounterVec
	exportEntries              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_rows_total",
				Help: "Rows processed by bulk ingestion, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		renderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_render_duration_seconds",
				Help:    "Page render latency, labeled by site.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"site"},
		)

		renderFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_render_failures_total",
				Help: "Page renders that failed, labeled by site and kind (timeout or failure).",
			},
			[]string{"site", "kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-site rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		adapterFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_adapter_failures_total",
				Help: "Site adapter errors and panics that were recovered.",
			},
			[]string{"adapter"},
		)

		snapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_snapshots_total",
				Help: "Blocked-page snapshots written, labeled by result.",
			},
			[]string{"result"},
		)

		exportEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_export_entries",
				Help: "Remaining-work exports waiting to be downloaded.",
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
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRow counts one processed ingest row.
func ObserveRow(outcome string) {
	if ingestRowsTotal == nil {
		return
	}
	ingestRowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records a finished render. kind is empty on success.
func ObserveRender(rawURL, kind string, duration time.Duration) {
	if renderDurationSeconds == nil {
		return
	}
	site := SanitizeSite(rawURL)
	renderDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if kind != "" {
		renderFailuresTotal.WithLabelValues(site, kind).Inc()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveAdapterFailure counts a recovered site adapter failure.
func ObserveAdapterFailure(adapter string) {
	if adapterFailuresTotal == nil {
		return
	}
	adapterFailuresTotal.WithLabelValues(adapter).Inc()
}

// ObserveSnapshot counts a snapshot attempt.
func ObserveSnapshot(ok bool) {
	if snapshotsTotal == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	snapshotsTotal.WithLabelValues(result).Inc()
}

// SetExportEntries reports the export store size.
func SetExportEntries(n int) {
	if exportEntries == nil {
		return
	}
	exportEntries.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
