package voice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_state_transitions_total",
		Help: "Voice session state transitions",
	}, []string{"from", "to"})

	metricTurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_turns_total",
		Help: "Completed conversational turns",
	})

	metricTurnDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_turn_duration_ms",
		Help:    "End-to-end turn latency from audio receipt to reply sent (ms)",
		Buckets: prometheus.ExponentialBuckets(200, 1.6, 12),
	})

	metricDiagnosesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_diagnoses_total",
		Help: "Successful diagnoses",
	})

	metricPlansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_plans_total",
		Help: "Generated treatment plans",
	})

	metricAgentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_errors_total",
		Help: "Swallowed background agent errors by agent",
	}, []string{"agent"})

	gaugeSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_sessions_active",
		Help: "Active voice sessions",
	})
)
