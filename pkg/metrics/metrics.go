// Package metrics provides Prometheus-based metrics for the conversation
// runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcome labels.
const (
	OutcomeCompleted      = "completed"
	OutcomeInteractive    = "interactive"
	OutcomeGuardViolation = "guard_violation"
	OutcomeUnknownIntent  = "unknown_intent"
	OutcomeError          = "error"
)

// Recorder collects runtime metrics. All methods are safe for concurrent
// use; a nil *Recorder is a no-op so components can run without metrics.
type Recorder struct {
	activeConversations prometheus.Gauge
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	guardViolations     *prometheus.CounterVec
	classifications     *prometheus.CounterVec
	llmCallsTotal       *prometheus.CounterVec
	llmTokensTotal      *prometheus.CounterVec
	toolCallsTotal      *prometheus.CounterVec
	streamChunksTotal   prometheus.Counter
}

// NewRecorder registers all collectors on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		activeConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "morgana_active_conversations",
			Help: "Number of conversations with a live manager goroutine",
		}),
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_turns_total",
				Help: "Total processed user turns by intent and outcome",
			},
			[]string{"intent", "outcome"},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "morgana_turn_duration_seconds",
				Help:    "End-to-end duration of one user turn",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"intent"},
		),
		guardViolations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_guard_violations_total",
				Help: "Messages rejected by the content guard, by stage and category",
			},
			[]string{"stage", "category"},
		),
		classifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_classifications_total",
				Help: "Intent classification results",
			},
			[]string{"intent"},
		),
		llmCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_llm_calls_total",
				Help: "LLM calls by purpose and status",
			},
			[]string{"purpose", "status"},
		),
		llmTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_llm_tokens_total",
				Help: "Token usage by purpose and type",
			},
			[]string{"purpose", "type"},
		),
		toolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morgana_tool_calls_total",
				Help: "Tool invocations by tool name and status",
			},
			[]string{"tool", "status"},
		),
		streamChunksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "morgana_stream_chunks_total",
			Help: "Streaming chunks delivered to the push bridge",
		}),
	}
}

// ConversationStarted increments the active conversation gauge.
func (r *Recorder) ConversationStarted() {
	if r == nil {
		return
	}
	r.activeConversations.Inc()
}

// ConversationStopped decrements the active conversation gauge.
func (r *Recorder) ConversationStopped() {
	if r == nil {
		return
	}
	r.activeConversations.Dec()
}

// ObserveTurn records one completed turn.
func (r *Recorder) ObserveTurn(intent, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(intent, outcome).Inc()
	r.turnDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// GuardViolation records a rejected message. stage is "term_filter" or "llm".
func (r *Recorder) GuardViolation(stage, category string) {
	if r == nil {
		return
	}
	r.guardViolations.WithLabelValues(stage, category).Inc()
}

// Classification records one classifier result.
func (r *Recorder) Classification(intent string) {
	if r == nil {
		return
	}
	r.classifications.WithLabelValues(intent).Inc()
}

// LLMCall records one provider round-trip with its token usage.
func (r *Recorder) LLMCall(purpose string, success bool, inputTokens, outputTokens int64) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.llmCallsTotal.WithLabelValues(purpose, status).Inc()
	if success {
		r.llmTokensTotal.WithLabelValues(purpose, "input").Add(float64(inputTokens))
		r.llmTokensTotal.WithLabelValues(purpose, "output").Add(float64(outputTokens))
	}
}

// ToolCall records one tool invocation.
func (r *Recorder) ToolCall(tool string, success bool) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// StreamChunk records one delivered streaming chunk.
func (r *Recorder) StreamChunk() {
	if r == nil {
		return
	}
	r.streamChunksTotal.Inc()
}
