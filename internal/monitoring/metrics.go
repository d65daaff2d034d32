// Package monitoring holds the service's Prometheus collectors.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	TrainingFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_files_total",
			Help: "Files processed by training jobs, by final status",
		},
		[]string{"status"},
	)
	TrainingChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_chunks_total",
			Help: "Chunks embedded and stored by training jobs",
		},
	)
	EmbeddingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_request_duration_seconds",
			Help:    "Latency of embedding calls to the inference backend",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "outcome"},
	)

	ChatStreamDeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_stream_deltas_total",
			Help: "Content deltas relayed to chat consumers",
		},
		[]string{"relay"},
	)
	ChatStreamSkippedLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stream_skipped_lines_total",
			Help: "Upstream chat stream lines dropped as malformed",
		},
	)
)

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
