// Package metrics exposes Prometheus collectors for the crawl run and the
// status server.
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

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerRecordsTotal        *prometheus.CounterVec
	crawlerFailuresTotal       *prometheus.CounterVec
	crawlerBatchSeconds        prometheus.Histogram
	crawlerFrontierPending     prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of URLs processed, labeled by site, content type and status.",
			},
			[]string{"site", "type", "status"},
		)

		crawlerRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Total number of dataset records emitted, labeled by content type and language.",
			},
			[]string{"type", "language"},
		)

		crawlerFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_failures_total",
				Help: "Total number of per-URL failures, labeled by error class.",
			},
			[]string{"class"},
		)

		crawlerBatchSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_batch_duration_seconds",
				Help:    "Histogram of batch wall time, excluding the inter-batch delay.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		crawlerFrontierPending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_pending",
				Help: "Number of URLs waiting in the frontier.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
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

// ObservePage counts one processed URL.
func ObservePage(site, contentType, status string) {
	Init()
	crawlerPagesTotal.WithLabelValues(SanitizeSite(site), contentType, status).Inc()
}

// ObserveRecords counts emitted dataset records.
func ObserveRecords(contentType, language string, n int) {
	if n <= 0 {
		return
	}
	Init()
	crawlerRecordsTotal.WithLabelValues(contentType, language).Add(float64(n))
}

// ObserveFailure counts a per-URL failure by taxonomy class.
func ObserveFailure(class string) {
	Init()
	crawlerFailuresTotal.WithLabelValues(class).Inc()
}

// ObserveBatch records a batch duration and the frontier size after it.
func ObserveBatch(duration time.Duration, pending int) {
	Init()
	crawlerBatchSeconds.Observe(duration.Seconds())
	crawlerFrontierPending.Set(float64(pending))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
