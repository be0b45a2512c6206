package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the toolkit's operational counters.
type Metrics interface {
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolInvocation(ctx context.Context, tool string, duration time.Duration, err error)
	RecordNegotiation(ctx context.Context, rounds int, extracted bool)
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the installed recorder, or nil when metrics are
// disabled.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// PrometheusMetrics is an otel-metric recorder exported via Prometheus.
type PrometheusMetrics struct {
	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	negotiations        metric.Int64Counter
	negotiationRounds   metric.Int64Counter
	negotiationFailures metric.Int64Counter
}

// InitMetrics builds the Prometheus-backed recorder and installs it globally.
func InitMetrics(enabled bool) (*PrometheusMetrics, error) {
	if !enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter(DefaultServiceName)

	m := &PrometheusMetrics{}

	if m.llmDuration, err = meter.Float64Histogram(
		"agora_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	if m.llmInputTokens, err = meter.Int64Counter(
		"agora_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the backend"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}
	if m.llmOutputTokens, err = meter.Int64Counter(
		"agora_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the backend"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}
	if m.llmErrors, err = meter.Int64Counter(
		"agora_llm_errors_total",
		metric.WithDescription("Total backend errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram(
		"agora_tool_invocation_duration_seconds",
		metric.WithDescription("Tool invocation duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	if m.toolCalls, err = meter.Int64Counter(
		"agora_tool_invocations_total",
		metric.WithDescription("Total tool invocations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	if m.toolErrors, err = meter.Int64Counter(
		"agora_tool_errors_total",
		metric.WithDescription("Total failed tool invocations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}
	if m.negotiations, err = meter.Int64Counter(
		"agora_negotiations_total",
		metric.WithDescription("Total negotiation runs"),
	); err != nil {
		return nil, fmt.Errorf("failed to create negotiations counter: %w", err)
	}
	if m.negotiationRounds, err = meter.Int64Counter(
		"agora_negotiation_rounds_total",
		metric.WithDescription("Total negotiation rounds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create negotiation rounds counter: %w", err)
	}
	if m.negotiationFailures, err = meter.Int64Counter(
		"agora_negotiations_exhausted_total",
		metric.WithDescription("Negotiations that exhausted the round bound"),
	); err != nil {
		return nil, fmt.Errorf("failed to create negotiation failures counter: %w", err)
	}

	SetGlobalMetrics(m)
	return m, nil
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolInvocation(ctx context.Context, tool string, duration time.Duration, err error) {
	if m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordNegotiation(ctx context.Context, rounds int, extracted bool) {
	if m.negotiations == nil {
		return
	}

	m.negotiations.Add(ctx, 1)
	m.negotiationRounds.Add(ctx, int64(rounds))
	if !extracted {
		m.negotiationFailures.Add(ctx, 1)
	}
}
