// Package metrics declares every Prometheus collector this service exports,
// using the teacher's promauto-registers-at-package-init idiom so every
// collector is live the moment its package is imported, with no separate
// registration step.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrt_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentrt_sessions_active",
			Help: "Number of sessions currently open or within their reconnect grace window",
		},
	)

	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_sessions_closed_total",
			Help: "Total number of sessions torn down, by reason",
		},
		[]string{"reason"}, // reason: disconnect_grace_expired, client_close, server_shutdown
	)

	// Interaction loop (C5): one run per user_message, bounded by max turns
	// and the run ceiling.
	InteractionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrt_interactions_started_total",
			Help: "Total number of interaction loop runs started",
		},
	)

	InteractionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_interactions_completed_total",
			Help: "Total number of interaction loop runs completed, by outcome",
		},
		[]string{"outcome"}, // outcome: ok, error
	)

	InteractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentrt_interaction_duration_seconds",
			Help:    "Interaction loop run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	InteractionTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentrt_interaction_turns",
			Help:    "Number of model turns consumed per interaction loop run",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 12, 15},
		},
	)

	// LLM calls.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_llm_requests_total",
			Help: "Total number of LLM chat requests, by provider and status",
		},
		[]string{"provider", "status"}, // status: ok, error
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentrt_llm_request_duration_seconds",
			Help:    "LLM chat request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_llm_tokens_total",
			Help: "Total tokens consumed across LLM calls",
		},
		[]string{"provider", "kind"}, // kind: prompt, completion
	)

	// Interpreter (C3): fenced code execution.
	InterpreterRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_interpreter_runs_total",
			Help: "Total number of agent.run fences executed, by status",
		},
		[]string{"status"}, // status: ok, error, timeout
	)

	InterpreterRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentrt_interpreter_run_duration_seconds",
			Help:    "Duration of a single agent.run fence execution",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Mounts (C4).
	MountsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrt_mounts_registered_total",
			Help: "Total number of UI mounts registered",
		},
	)

	MountSchemaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrt_mount_schema_rejections_total",
			Help: "Total number of mount payloads rejected by outputSchema validation",
		},
	)

	// Skills.
	SkillsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentrt_skills_loaded",
			Help: "Number of distinct skills currently loaded",
		},
	)

	SkillReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_skill_reloads_total",
			Help: "Total number of skill directory reload attempts, by outcome",
		},
		[]string{"outcome"}, // outcome: ok, error
	)

	// Transport (websocket).
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentrt_websocket_connections",
			Help: "Number of currently open websocket connections",
		},
	)

	WebsocketFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrt_websocket_frames_sent_total",
			Help: "Total number of outbound envelopes pushed, by type",
		},
		[]string{"type"},
	)

	WebsocketFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrt_websocket_frames_dropped_total",
			Help: "Total number of outbound frames dropped because a subscriber's channel was full",
		},
	)
)

// RecordInteraction records the outcome, duration, and turn count of one
// completed interaction loop run.
func RecordInteraction(outcome string, durationSeconds float64, turns int) {
	InteractionsCompleted.WithLabelValues(outcome).Inc()
	InteractionDuration.Observe(durationSeconds)
	if turns > 0 {
		InteractionTurns.Observe(float64(turns))
	}
}

// RecordLLMRequest records one LLM chat call's outcome, latency, and token
// usage.
func RecordLLMRequest(provider, status string, durationSeconds float64, promptTokens, completionTokens int) {
	LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	LLMRequestDuration.WithLabelValues(provider).Observe(durationSeconds)
	if promptTokens > 0 {
		LLMTokensUsed.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensUsed.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// RecordInterpreterRun records one agent.run fence execution's status and
// duration.
func RecordInterpreterRun(status string, durationSeconds float64) {
	InterpreterRunsTotal.WithLabelValues(status).Inc()
	InterpreterRunDuration.Observe(durationSeconds)
}
