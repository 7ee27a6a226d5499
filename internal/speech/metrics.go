package speech

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sttRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_requests_total",
		Help: "Total transcription requests by status (ok, empty, error)",
	}, []string{"status"})

	sttLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_latency_ms",
		Help:    "Transcription latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	})

	ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_synthesis_total",
		Help: "Total synthesis requests by status (ok, empty, error)",
	}, []string{"status"})

	ttsLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_latency_ms",
		Help:    "Synthesis latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})
)
