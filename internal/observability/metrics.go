package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgexfer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "receiver",
			Name:      "frames_total",
			Help:      "Decoded frames by tag.",
		},
		[]string{"tag"},
	)
	payloadReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "receiver",
			Name:      "payload_bytes_total",
			Help:      "Chunk payload bytes decoded.",
		},
	)
	chunksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "receiver",
			Name:      "chunks_dropped_total",
			Help:      "Chunks discarded without being applied.",
		},
		[]string{"reason"},
	)
	stashedChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgexfer",
			Subsystem: "receiver",
			Name:      "reorder_stash_chunks",
			Help:      "Out-of-order chunks currently held for indefinite files.",
		},
	)
	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "receiver",
			Name:      "transfers_total",
			Help:      "Closed transfers by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "sender",
			Name:      "frames_total",
			Help:      "Encoded frames written by tag.",
		},
		[]string{"tag"},
	)
	payloadSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgexfer",
			Subsystem: "sender",
			Name:      "payload_bytes_total",
			Help:      "Chunk payload bytes written.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			framesReceived,
			payloadReceived,
			chunksDropped,
			stashedChunks,
			transfers,
			framesSent,
			payloadSent,
		)
	})
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrameReceived(tag string, payloadBytes int) {
	RegisterMetrics()
	framesReceived.WithLabelValues(tag).Inc()
	if payloadBytes > 0 {
		payloadReceived.Add(float64(payloadBytes))
	}
}

func RecordChunkDropped(reason string) {
	RegisterMetrics()
	chunksDropped.WithLabelValues(reason).Inc()
}

// AddStashed moves the reorder stash gauge by delta chunks.
func AddStashed(delta int) {
	RegisterMetrics()
	stashedChunks.Add(float64(delta))
}

func RecordTransfer(definite bool, outcome string) {
	RegisterMetrics()
	kind := "indefinite"
	if definite {
		kind = "definite"
	}
	transfers.WithLabelValues(kind, outcome).Inc()
}

func RecordFrameSent(tag string, payloadBytes int) {
	RegisterMetrics()
	framesSent.WithLabelValues(tag).Inc()
	if payloadBytes > 0 {
		payloadSent.Add(float64(payloadBytes))
	}
}

// ChunksDropped exposes the drop counter for one reason.
func ChunksDropped(reason string) prometheus.Counter {
	return chunksDropped.WithLabelValues(reason)
}
