package ports

import (
	"context"
	"time"
)

// CompletionRequest is a single prompt sent to an LLM provider.
type CompletionRequest struct {
	// Prompt is the user message.
	Prompt string

	// System is an optional system instruction. Providers without a system
	// role prepend it to the prompt.
	System string

	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature is nil to use the provider default.
	Temperature *float64

	// MaxTokens caps the generated output. Zero selects the client default.
	MaxTokens int
}

// Completion is a provider response with its token usage.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations handle authentication, request formatting, and response
// parsing; retries, timeouts and rate limits are layered on as middleware.
type LLMClient interface {
	// Complete sends a completion request to the provider.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// EstimateTokens returns an approximate token count for text. It is used
	// for budgeting before a request is made.
	EstimateTokens(text string) int

	// Model returns the model identifier used by default.
	Model() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

// RecordLatency implements MetricsCollector.
func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}

// RecordCounter implements MetricsCollector.
func (NopMetrics) RecordCounter(string, float64, map[string]string) {}

// RecordGauge implements MetricsCollector.
func (NopMetrics) RecordGauge(string, float64, map[string]string) {}

// RecordHistogram implements MetricsCollector.
func (NopMetrics) RecordHistogram(string, float64, map[string]string) {}

var _ MetricsCollector = NopMetrics{}
