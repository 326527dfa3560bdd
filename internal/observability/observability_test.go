package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.MessageReceived("telegram")
	metrics.MessageReceived("telegram")
	metrics.MessageSent("telegram")
	metrics.RecordToolExecution("schedule_task", "success", 0.02)
	metrics.RecordConfirmation("approved")
	metrics.RecordNotification("telegram", "sent")
	metrics.RecordTaskRun("one_off", "success")
	metrics.RecordError("scheduler", "store_unavailable")
	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-20250514", "success", 1.2, 100, 50)

	expected := `
		# HELP steward_messages_total Total messages processed by transport and direction
		# TYPE steward_messages_total counter
		steward_messages_total{direction="inbound",transport="telegram"} 2
		steward_messages_total{direction="outbound",transport="telegram"} 1
	`
	if err := testutil.CollectAndCompare(metrics.MessageCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("message counter: %v", err)
	}

	if got := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("anthropic", "claude-sonnet-4-20250514", "prompt")); got != 100 {
		t.Errorf("prompt tokens = %v", got)
	}
	if got := testutil.ToFloat64(metrics.TaskRunCounter.WithLabelValues("one_off", "success")); got != 1 {
		t.Errorf("task runs = %v", got)
	}
}

func TestTracerNoopWithoutEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "steward-test"})

	ctx, span := tracer.TraceTurn(context.Background(), "telegram", "chat-1")
	if span.SpanContext().IsValid() {
		t.Error("no-op tracer should not produce recorded spans")
	}
	span.End()

	_, toolSpan := tracer.TraceToolExecution(ctx, "write_file")
	toolSpan.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	logger.Warn("visible", "component", "test")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatal(err)
	}
	if record["msg"] != "visible" || record["component"] != "test" {
		t.Errorf("record = %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
