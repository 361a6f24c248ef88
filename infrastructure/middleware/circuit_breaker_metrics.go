package middleware

import (
	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Circuit breaker metric names.
const (
	MetricCircuitState  = "llm_circuit_state"
	MetricCircuitEvents = "llm_circuit_events_total"
)

// CircuitBreakerMetrics reports llm circuit breaker activity to a
// ports.MetricsCollector.
type CircuitBreakerMetrics struct {
	collector ports.MetricsCollector
	provider  string
}

var _ llm.CircuitBreakerMetrics = (*CircuitBreakerMetrics)(nil)

// NewCircuitBreakerMetrics labels every observation with provider.
func NewCircuitBreakerMetrics(collector ports.MetricsCollector, provider string) *CircuitBreakerMetrics {
	if collector == nil {
		collector = ports.NopMetrics{}
	}
	return &CircuitBreakerMetrics{collector: collector, provider: provider}
}

// RecordState implements llm.CircuitBreakerMetrics.
func (m *CircuitBreakerMetrics) RecordState(state llm.CircuitBreakerState) {
	m.collector.RecordGauge(MetricCircuitState, float64(state), map[string]string{"provider": m.provider})
}

// RecordTrip implements llm.CircuitBreakerMetrics.
func (m *CircuitBreakerMetrics) RecordTrip() { m.event("rejected") }

// RecordSuccess implements llm.CircuitBreakerMetrics.
func (m *CircuitBreakerMetrics) RecordSuccess() { m.event("success") }

// RecordFailure implements llm.CircuitBreakerMetrics.
func (m *CircuitBreakerMetrics) RecordFailure() { m.event("failure") }

func (m *CircuitBreakerMetrics) event(kind string) {
	m.collector.RecordCounter(MetricCircuitEvents, 1, map[string]string{"provider": m.provider, "event": kind})
}
