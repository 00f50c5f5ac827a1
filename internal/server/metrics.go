package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumentrace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumentrace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Drawing session metrics
	drawingSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumentrace_drawing_sessions_total",
			Help: "Total number of drawing sessions by outcome",
		},
		[]string{"outcome"}, // outcome: started, committed, aborted
	)

	drawingAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumentrace_drawing_aborts_total",
			Help: "Aborted drawing sessions by reason",
		},
		[]string{"reason"},
	)

	pointerEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumentrace_pointer_event_duration_seconds",
			Help:    "Time spent handling one pointer event, including contour recompute",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"kind"},
	)

	committedContourPoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lumentrace_committed_contour_points",
			Help:    "Number of points in committed contours",
			Buckets: []float64{3, 8, 16, 32, 64, 128, 256, 512, 1024, 4096},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumentrace_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, slices, data
	)

	sliceSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lumentrace_slice_size_bytes",
			Help:    "Size of encoded slice images received over WebSocket",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 4 * 1024 * 1024, 16 * 1024 * 1024, 64 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumentrace_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumentrace_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
