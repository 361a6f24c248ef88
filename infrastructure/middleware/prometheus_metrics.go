package middleware

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-tourney/internal/ports"
)

// durationSuffix is appended to names passed to RecordLatency.
const durationSuffix = "_seconds"

// metricHelp documents the metrics the tournament, the LLM client and the
// budget judge emit. Unknown names get a generic help string.
var metricHelp = map[string]string{
	"tournament_matches_total":          "Matches consumed, by outcome.",
	"tournament_judge_duration_seconds": "Time spent in a single judge comparison.",
	"tournament_top_rating":             "Rating of the leading candidate after the last run.",
	"tournament_valid_matches":          "Matches that changed ratings in the last run.",
	"tournament_runs_total":             "Completed tournament runs.",
	"tournament_run_seconds":            "Wall time of a tournament run.",
	"llm_latency_seconds":               "Latency of LLM provider requests.",
	"llm_requests_total":                "LLM provider requests, by status.",
	"llm_tokens_total":                  "Tokens reported by LLM providers.",
	"llm_circuit_state":                 "Circuit breaker state: 0 closed, 1 open, 2 half open.",
	"llm_circuit_events_total":          "Circuit breaker outcomes.",
	"judge_budget_calls_used":           "Judge calls admitted by the budget.",
	"judge_budget_tokens_used":          "Estimated tokens admitted by the budget.",
	"judge_budget_remaining":            "Budget left, by resource.",
	"judge_budget_exceeded_total":       "Judge calls refused by the budget.",
	"judge_budget_call_seconds":         "Duration of budgeted judge calls.",
}

// family is a metric vector with the label keys it was created with.
type family[V any] struct {
	keys []string
	vec  V
}

// PrometheusMetrics implements ports.MetricsCollector on Prometheus.
// Vectors are created on first use, keyed by metric name, with the label
// keys of that first observation. Later observations are projected onto
// those keys: missing labels become "" and extra labels are dropped.
type PrometheusMetrics struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]family[*prometheus.CounterVec]
	gauges     map[string]family[*prometheus.GaugeVec]
	histograms map[string]family[*prometheus.HistogramVec]
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusOption configures PrometheusMetrics.
type PrometheusOption func(*PrometheusMetrics)

// WithRegisterer registers metrics with r instead of the default registry.
func WithRegisterer(r prometheus.Registerer) PrometheusOption {
	return func(pm *PrometheusMetrics) { pm.registerer = r }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(b []float64) PrometheusOption {
	return func(pm *PrometheusMetrics) { pm.buckets = b }
}

// NewPrometheusMetrics creates a collector. By default metrics go to
// prometheus.DefaultRegisterer with prometheus.DefBuckets.
func NewPrometheusMetrics(opts ...PrometheusOption) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		registerer: prometheus.DefaultRegisterer,
		buckets:    prometheus.DefBuckets,
		counters:   map[string]family[*prometheus.CounterVec]{},
		gauges:     map[string]family[*prometheus.GaugeVec]{},
		histograms: map[string]family[*prometheus.HistogramVec]{},
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// RecordLatency implements ports.MetricsCollector. The duration is observed
// in seconds on the histogram named operation + "_seconds".
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.RecordHistogram(operation+durationSuffix, duration.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	pm.mu.Lock()
	f, ok := pm.counters[metric]
	if !ok {
		keys := labelKeys(labels)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metric, Help: help(metric)}, keys)
		f = family[*prometheus.CounterVec]{keys: keys, vec: register(pm.registerer, vec)}
		pm.counters[metric] = f
	}
	pm.mu.Unlock()
	f.vec.With(project(f.keys, labels)).Add(value)
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	f, ok := pm.gauges[metric]
	if !ok {
		keys := labelKeys(labels)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: metric, Help: help(metric)}, keys)
		f = family[*prometheus.GaugeVec]{keys: keys, vec: register(pm.registerer, vec)}
		pm.gauges[metric] = f
	}
	pm.mu.Unlock()
	f.vec.With(project(f.keys, labels)).Set(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	f, ok := pm.histograms[metric]
	if !ok {
		keys := labelKeys(labels)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    help(metric),
			Buckets: pm.buckets,
		}, keys)
		f = family[*prometheus.HistogramVec]{keys: keys, vec: register(pm.registerer, vec)}
		pm.histograms[metric] = f
	}
	pm.mu.Unlock()
	f.vec.With(project(f.keys, labels)).Observe(value)
}

// register adds c to r. A collector already registered under the same
// descriptor is reused; one that conflicts with an existing metric is
// returned unregistered so recording never panics.
func register[C prometheus.Collector](r prometheus.Registerer, c C) C {
	if r == nil {
		return c
	}
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		return c
	}
	return c
}

func labelKeys(labels map[string]string) []string {
	return slices.Sorted(maps.Keys(labels))
}

func project(keys []string, labels map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		out[k] = labels[k]
	}
	return out
}

func help(metric string) string {
	if h, ok := metricHelp[metric]; ok {
		return h
	}
	return "Tournament metric " + metric + "."
}
