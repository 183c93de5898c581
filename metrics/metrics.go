package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarkit_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "avatarkit_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatarkit_llm_latency_seconds",
			Help:    "LLM completion latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"provider"},
	)

	SynthesisLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatarkit_synthesis_latency_seconds",
			Help:    "Speech synthesis latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
		[]string{"provider"},
	)

	SynthesisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarkit_synthesis_errors_total",
			Help: "Total number of failed synthesis calls",
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarkit_synthesis_cache_lookups_total",
			Help: "Synthesis cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	MouthCues = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avatarkit_mouth_cues_per_message",
			Help:    "Number of mouth cues generated per message",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
	)

	CannedReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarkit_canned_replies_total",
			Help: "Total number of prerecorded replies served",
		},
		[]string{"reason"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatarkit_websocket_connections",
			Help: "Number of open chat websocket connections",
		},
	)
)
