// Package observability bundles the Prometheus metrics, OpenTelemetry
// tracing, and slog setup shared by the runtime.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the assistant runtime.
type Metrics struct {
	// MessageCounter tracks messages by transport and direction.
	// Labels: transport (telegram|discord|...), direction (inbound|outbound)
	MessageCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ConfirmationCounter counts confirmation prompt outcomes.
	// Labels: outcome (approved|denied|timeout)
	ConfirmationCounter *prometheus.CounterVec

	// NotificationCounter counts notification deliveries.
	// Labels: channel, status (sent|failed)
	NotificationCounter *prometheus.CounterVec

	// TaskRunCounter counts scheduled task executions.
	// Labels: task_type (one_off|recurring), status (success|error)
	TaskRunCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and type.
	// Labels: component (agent|transport|tool|scheduler), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. A nil registerer uses
// the default registry; tests pass their own.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_messages_total",
				Help: "Total messages processed by transport and direction",
			},
			[]string{"transport", "direction"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_llm_requests_total",
				Help: "Total LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_llm_tokens_total",
				Help: "Total tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ConfirmationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_confirmations_total",
				Help: "Total confirmation prompts by outcome",
			},
			[]string{"outcome"},
		),

		NotificationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_notifications_total",
				Help: "Total notification deliveries by channel and status",
			},
			[]string{"channel", "status"},
		),

		TaskRunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_task_runs_total",
				Help: "Total scheduled task executions by type and status",
			},
			[]string{"task_type", "status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_errors_total",
				Help: "Total errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// MessageReceived increments the inbound message counter.
func (m *Metrics) MessageReceived(transport string) {
	m.MessageCounter.WithLabelValues(transport, "inbound").Inc()
}

// MessageSent increments the outbound message counter.
func (m *Metrics) MessageSent(transport string) {
	m.MessageCounter.WithLabelValues(transport, "outbound").Inc()
}

// RecordLLMRequest records one completed LLM round.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordConfirmation records a confirmation prompt outcome.
func (m *Metrics) RecordConfirmation(outcome string) {
	m.ConfirmationCounter.WithLabelValues(outcome).Inc()
}

// RecordNotification records a notification delivery attempt.
func (m *Metrics) RecordNotification(channel, status string) {
	m.NotificationCounter.WithLabelValues(channel, status).Inc()
}

// RecordTaskRun records a scheduled task execution.
func (m *Metrics) RecordTaskRun(taskType, status string) {
	m.TaskRunCounter.WithLabelValues(taskType, status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
