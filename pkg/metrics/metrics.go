// Package metrics provides Prometheus metrics for the NAS server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nasd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Content transfer metrics
	bytesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_bytes_sent_total",
			Help: "Total file bytes sent to clients",
		},
		[]string{"endpoint"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nasd_bytes_uploaded_total",
			Help: "Total bytes stored by uploads",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	rangeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_range_requests_total",
			Help: "Streaming requests by how the Range header was handled",
		},
		[]string{"result"},
	)

	thumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_thumbnails_total",
			Help: "Total thumbnails rendered",
		},
		[]string{"format", "status"},
	)

	// Cache metrics
	statsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_stats_cache_requests_total",
			Help: "Stats requests served from cache or recomputed",
		},
		[]string{"result"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasd_auth_attempts_total",
			Help: "Total API key checks",
		},
		[]string{"result"},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nasd_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric. route is the matched route
// pattern, not the raw URL.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBytesSent records file bytes written by a download or stream endpoint.
func RecordBytesSent(endpoint string, n int64) {
	bytesSent.WithLabelValues(endpoint).Add(float64(n))
}

// RecordUpload records a finished upload.
func RecordUpload(n int64, success bool) {
	if success {
		bytesUploaded.Add(float64(n))
	}
	uploadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordRangeRequest records whether a stream was partial, full or a fallback
// from an unusable Range header.
func RecordRangeRequest(result string) {
	rangeRequestsTotal.WithLabelValues(result).Inc()
}

// RecordThumbnail records a thumbnail render.
func RecordThumbnail(format string, success bool) {
	thumbnailsTotal.WithLabelValues(format, outcome(success)).Inc()
}

// RecordStatsCache records a stats request. It matches statscache.WithObserver.
func RecordStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	statsCacheTotal.WithLabelValues(result).Inc()
}

// RecordAuthAttempt records an API key check.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a request rejected by the rate limiter.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}
