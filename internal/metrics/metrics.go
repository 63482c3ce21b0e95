// Package metrics exposes Prometheus collectors for the collector run.
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
	messagesTotal              *prometheus.CounterVec
	recordsTotal               prometheus.Counter
	resolutionsTotal           *prometheus.CounterVec
	ingestTotal                *prometheus.CounterVec
	storeWriteFailuresTotal    *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		messagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_messages_total",
				Help: "Feed messages scanned, labeled by terminal state.",
			},
			[]string{"state"},
		)

		recordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_records_total",
				Help: "Ingest records produced.",
			},
		)

		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_resolutions_total",
				Help: "Page resolutions, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		ingestTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_media_ingest_total",
				Help: "Media ingest attempts, labeled by outcome (uploaded, dedup, failed).",
			},
			[]string{"outcome"},
		)

		storeWriteFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_store_write_failures_total",
				Help: "Record store insert failures, labeled by table.",
			},
			[]string{"table"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
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

// ObserveMessage counts a message reaching a terminal state.
func ObserveMessage(state string) {
	Init()
	messagesTotal.WithLabelValues(state).Inc()
}

// ObserveRecord counts a produced record.
func ObserveRecord() {
	Init()
	recordsTotal.Inc()
}

// ObserveResolution counts a resolution attempt by outcome.
func ObserveResolution(site, status string) {
	Init()
	resolutionsTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveIngest counts a media ingest outcome.
func ObserveIngest(outcome string) {
	Init()
	ingestTotal.WithLabelValues(outcome).Inc()
}

// ObserveStoreWriteFailure counts a failed record insert.
func ObserveStoreWriteFailure(table string) {
	Init()
	storeWriteFailuresTotal.WithLabelValues(table).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
