package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotate",
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits by collection",
	}, []string{"collection"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotate",
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses by collection",
	}, []string{"collection"})

	DurableOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotate",
		Name:      "durable_ops_total",
		Help:      "Total number of durable store operations",
	}, []string{"collection", "op"})

	InterpolationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "annotate",
		Name:      "interpolation_duration_seconds",
		Help:      "Duration of video annotation interpolation runs",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	FramesPropagated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "annotate",
		Name:      "frames_propagated_total",
		Help:      "Total number of video frames that received propagated annotations",
	})

	PredictionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "annotate",
		Name:      "prediction_duration_seconds",
		Help:      "Duration of mask predictor stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "annotate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "annotate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "annotate",
		Name:      "interpolation_queue_depth",
		Help:      "Number of pending interpolation tasks",
	})
)
