package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/testutils"
)

// findMetric returns the series of family name whose labels include want.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, want) {
				return m
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, want)
	return nil
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPrometheusMetrics_Counter(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(WithRegisterer(reg))

	pm.RecordCounter("tournament_matches_total", 1, map[string]string{"outcome": "decided", "strategy": "swiss"})
	pm.RecordCounter("tournament_matches_total", 2, map[string]string{"outcome": "decided", "strategy": "swiss"})
	pm.RecordCounter("tournament_matches_total", 1, map[string]string{"outcome": "skipped_tie", "strategy": "swiss"})
	pm.RecordCounter("tournament_matches_total", -1, map[string]string{"outcome": "decided", "strategy": "swiss"})

	decided := findMetric(t, reg, "tournament_matches_total", map[string]string{"outcome": "decided"})
	assert.Equal(t, 3.0, decided.GetCounter().GetValue())
	tie := findMetric(t, reg, "tournament_matches_total", map[string]string{"outcome": "skipped_tie"})
	assert.Equal(t, 1.0, tie.GetCounter().GetValue())
}

func TestPrometheusMetrics_GaugeAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(WithRegisterer(reg), WithBuckets([]float64{0.1, 1, 10}))

	pm.RecordGauge("tournament_top_rating", 1216, map[string]string{"strategy": "round_robin"})
	pm.RecordGauge("tournament_top_rating", 1250, map[string]string{"strategy": "round_robin"})
	pm.RecordHistogram("tournament_run_seconds", 0.5, map[string]string{"strategy": "round_robin"})
	pm.RecordLatency("tournament_judge_duration", 2*time.Second, map[string]string{"status": "ok"})

	gauge := findMetric(t, reg, "tournament_top_rating", nil)
	assert.Equal(t, 1250.0, gauge.GetGauge().GetValue())

	run := findMetric(t, reg, "tournament_run_seconds", nil)
	assert.Equal(t, uint64(1), run.GetHistogram().GetSampleCount())
	assert.Len(t, run.GetHistogram().GetBucket(), 3)

	latency := findMetric(t, reg, "tournament_judge_duration_seconds", map[string]string{"status": "ok"})
	assert.Equal(t, 2.0, latency.GetHistogram().GetSampleSum())
}

func TestPrometheusMetrics_LabelProjection(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(WithRegisterer(reg))

	pm.RecordCounter("llm_requests_total", 1, map[string]string{"provider": "openai", "status": "success"})
	assert.NotPanics(t, func() {
		pm.RecordCounter("llm_requests_total", 1, map[string]string{"provider": "openai", "extra": "dropped"})
	})

	m := findMetric(t, reg, "llm_requests_total", map[string]string{"provider": "openai", "status": ""})
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestPrometheusMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusMetrics(WithRegisterer(reg))
	second := NewPrometheusMetrics(WithRegisterer(reg))

	labels := map[string]string{"strategy": "random"}
	first.RecordCounter("tournament_runs_total", 1, labels)
	second.RecordCounter("tournament_runs_total", 1, labels)

	m := findMetric(t, reg, "tournament_runs_total", labels)
	assert.Equal(t, 2.0, m.GetCounter().GetValue())
}

func TestPrometheusMetrics_ConflictingLabelsDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusMetrics(WithRegisterer(reg))
	second := NewPrometheusMetrics(WithRegisterer(reg))

	first.RecordGauge("tournament_valid_matches", 3, map[string]string{"strategy": "swiss"})
	assert.NotPanics(t, func() {
		second.RecordGauge("tournament_valid_matches", 4, map[string]string{"run": "x"})
	})
}

func TestPrometheusMetrics_TournamentRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(WithRegisterer(reg))

	tour, err := application.NewTournament(
		testutils.NewPreferenceJudge("a", "b", "c"),
		application.WithStrategy(domain.StrategyRoundRobin),
		application.WithMetrics(pm),
	)
	require.NoError(t, err)

	cands := []domain.Candidate{domain.NewCandidate("c"), domain.NewCandidate("b"), domain.NewCandidate("a")}
	tour.Run(context.Background(), cands)

	decided := findMetric(t, reg, application.MetricMatches, map[string]string{"outcome": "decided"})
	assert.Equal(t, 3.0, decided.GetCounter().GetValue())
	runs := findMetric(t, reg, application.MetricRunsCompleted, nil)
	assert.Equal(t, 1.0, runs.GetCounter().GetValue())
	judge := findMetric(t, reg, application.MetricJudgeLatency+"_seconds", nil)
	assert.Equal(t, uint64(3), judge.GetHistogram().GetSampleCount())
}

func TestCircuitBreakerMetrics(t *testing.T) {
	metrics := &testutils.RecordingMetrics{}
	core := llm.NewMockCoreLLM()
	core.Error = llm.NewProviderError("mock", llm.ErrorTypeServerError, 500, "", nil)

	client := llm.NewClientFromCore(core, llm.ClientConfig{
		Middleware: []llm.Middleware{
			llm.CircuitBreakerMiddlewareWithMetrics(1, time.Hour, NewCircuitBreakerMetrics(metrics, "mock")),
		},
	})

	ctx := context.Background()
	for range 2 {
		_, err := client.Complete(ctx, ports.CompletionRequest{Prompt: "p"})
		require.Error(t, err)
	}

	events := metrics.Samples(MetricCircuitEvents)
	require.Len(t, events, 2)
	assert.Equal(t, "failure", events[0].Labels["event"])
	assert.Equal(t, "rejected", events[1].Labels["event"])

	state, ok := metrics.Last(MetricCircuitState)
	require.True(t, ok)
	assert.Equal(t, float64(llm.StateOpen), state.Value)
}
