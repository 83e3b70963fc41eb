// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCallDuration tracks model gateway call duration.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Model gateway call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// StreamsActive tracks open chat streams.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of open chat streams",
		},
	)

	// JournalConnected is 1 while the frame journal's NATS connection is up.
	JournalConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_nats_connected",
			Help: "Whether the frame journal is connected to NATS",
		},
	)

	// JournalReconnects counts NATS reconnections of the frame journal.
	JournalReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_nats_reconnects_total",
			Help: "NATS reconnections of the frame journal",
		},
	)

	// FramesTotal tracks frames written to chat streams.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_frames_total",
			Help: "Frames written to chat streams",
		},
		[]string{"role"},
	)

	// OrchestrationsTotal tracks review runs by outcome.
	OrchestrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrations_total",
			Help: "Review runs by outcome",
		},
		[]string{"outcome"},
	)

	// AgentTurnsTotal tracks agent exchanges by agent and result.
	AgentTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_total",
			Help: "Agent feedback exchanges",
		},
		[]string{"agent", "result"},
	)

	// JournalPublishFailures tracks frames the journal could not record.
	JournalPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_publish_failures_total",
			Help: "Frames the NATS journal failed to record",
		},
	)

	// ConversationsTotal tracks conversation store operations.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Conversation store operations",
		},
		[]string{"op"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for one model gateway call.
func RecordLLMCall(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMCallDuration.WithLabelValues(provider, model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementStreams increments the open stream count.
func IncrementStreams() {
	StreamsActive.Inc()
}

// DecrementStreams decrements the open stream count.
func DecrementStreams() {
	StreamsActive.Dec()
}
