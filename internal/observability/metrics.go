package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footfall",
		Name:      "frames_processed_total",
		Help:      "Total number of detection frames run through a counter",
	}, []string{"session_id"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footfall",
		Name:      "frames_dropped_total",
		Help:      "Detection frames rejected as stale or out of order",
	}, []string{"session_id"})

	Crossings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footfall",
		Name:      "crossings_total",
		Help:      "Line crossings by direction",
	}, []string{"session_id", "kind"})

	TracksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footfall",
		Name:      "tracks_created_total",
		Help:      "Tracks started from unmatched detections",
	}, []string{"session_id"})

	TracksExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footfall",
		Name:      "tracks_expired_total",
		Help:      "Tracks removed after exceeding the max age",
	}, []string{"session_id"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "footfall",
		Name:      "active_tracks",
		Help:      "Live tracks per session",
	}, []string{"session_id"})

	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "footfall",
		Name:      "frame_duration_seconds",
		Help:      "Time spent tracking and counting one frame",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "footfall",
		Name:      "queue_depth",
		Help:      "Number of pending detection frames in queue",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "footfall",
		Name:      "active_sessions",
		Help:      "Number of counting sessions held by this worker",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "footfall",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "footfall",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
