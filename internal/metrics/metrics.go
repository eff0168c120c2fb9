// Package metrics exposes Prometheus collectors for the trends service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	acquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_acquisitions_total",
			Help: "Total number of collections served, labeled by the acquisition step that produced them.",
		},
		[]string{"source"},
	)

	topicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_topics_total",
			Help: "Total number of topics served, labeled by acquisition step.",
		},
		[]string{"source"},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_extractions_total",
			Help: "Total number of extraction passes, labeled by the mode that produced results.",
		},
		[]string{"mode"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_fetches_total",
			Help: "Total number of upstream fetches, labeled by site, kind and outcome.",
		},
		[]string{"site", "kind", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trends_fetch_duration_seconds",
			Help:    "Histogram of upstream fetch latencies, labeled by kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trends_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host upstream rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"site"},
	)

	archiveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_archive_total",
			Help: "Collections handed to archive sinks, labeled by sink and outcome.",
		},
		[]string{"sink", "outcome"},
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"method", "route"},
	)
)

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

// ObserveAcquisition records a served collection.
func ObserveAcquisition(source string, topics int) {
	acquisitionsTotal.WithLabelValues(source).Inc()
	if topics > 0 {
		topicsTotal.WithLabelValues(source).Add(float64(topics))
	}
}

// ObserveExtraction records which extraction mode produced results ("none" when empty).
func ObserveExtraction(mode string) {
	extractionsTotal.WithLabelValues(mode).Inc()
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(site, kind, outcome string, duration time.Duration) {
	fetchesTotal.WithLabelValues(SanitizeSite(site), kind, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent blocked on the upstream limiter.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(delay.Seconds())
}

// ObserveArchive records one archive attempt.
func ObserveArchive(sink, outcome string) {
	archiveTotal.WithLabelValues(sink, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
