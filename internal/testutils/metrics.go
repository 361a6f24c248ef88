package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// MetricSample is one recorded observation.
type MetricSample struct {
	Kind   string
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics implements ports.MetricsCollector by keeping every
// observation in memory.
type RecordingMetrics struct {
	mu      sync.Mutex
	samples []MetricSample
}

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// RecordLatency implements ports.MetricsCollector. Durations are stored in
// seconds.
func (m *RecordingMetrics) RecordLatency(name string, d time.Duration, labels map[string]string) {
	m.add("latency", name, d.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordCounter(name string, v float64, labels map[string]string) {
	m.add("counter", name, v, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordGauge(name string, v float64, labels map[string]string) {
	m.add("gauge", name, v, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordHistogram(name string, v float64, labels map[string]string) {
	m.add("histogram", name, v, labels)
}

func (m *RecordingMetrics) add(kind, name string, v float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, MetricSample{Kind: kind, Name: name, Value: v, Labels: labels})
}

// Samples returns the observations recorded under name.
func (m *RecordingMetrics) Samples(name string) []MetricSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MetricSample
	for _, s := range m.samples {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent observation recorded under name.
func (m *RecordingMetrics) Last(name string) (MetricSample, bool) {
	s := m.Samples(name)
	if len(s) == 0 {
		return MetricSample{}, false
	}
	return s[len(s)-1], true
}

// Sum adds the values recorded under name.
func (m *RecordingMetrics) Sum(name string) float64 {
	var total float64
	for _, s := range m.Samples(name) {
		total += s.Value
	}
	return total
}
