package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricRequestLatency = "llm_latency_seconds"
	MetricRequests       = "llm_requests_total"
	MetricTokens         = "llm_tokens_total"
)

// metricsLLM records latency, request counts and token usage.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware reports every request to collector, labelled with
// provider, model and status.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	if collector == nil {
		collector = ports.NopMetrics{}
	}
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector, provider: provider}
	}
}

// DoRequest implements CoreLLM.
func (m *metricsLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	start := time.Now()
	out, err := m.next.DoRequest(ctx, req)

	model := req.Model
	if model == "" {
		model = m.next.GetModel()
	}
	labels := map[string]string{
		"provider": m.provider,
		"model":    model,
		"status":   requestStatus(err),
	}

	m.collector.RecordHistogram(MetricRequestLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricRequests, 1, labels)

	if err == nil {
		m.collector.RecordCounter(MetricTokens, float64(out.TokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter(MetricTokens, float64(out.TokensOut), withLabel(labels, "token_type", "output"))
	}

	return out, err
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Type.String()
	}
	return "error"
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}
