package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ucrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Crop metrics
	cropRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucrop_crop_requests_total",
			Help: "Total number of crop executions",
		},
		[]string{"surface", "status"}, // surface: http, websocket; status: success or error kind
	)

	cropDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ucrop_crop_duration_seconds",
			Help:    "Crop execution duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"surface"},
	)

	cropOutputPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ucrop_crop_output_pixels",
			Help:    "Pixel count of written crops",
			Buckets: prometheus.ExponentialBuckets(1e4, 4, 8),
		},
	)

	cropSampleSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ucrop_crop_sample_size",
			Help:    "Power-of-two reduction applied while loading the crop region",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ucrop_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ucrop_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ucrop_sessions_active",
			Help: "Number of interactive crop sessions",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ucrop_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucrop_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
