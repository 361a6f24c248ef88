package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/testutils"
)

func decodeVerdict(t *testing.T, raw string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNewPositionSwapJudge_RequiresNext(t *testing.T) {
	_, err := NewPositionSwapJudge(nil)
	require.Error(t, err)
}

func TestPositionSwapJudge_Consistent(t *testing.T) {
	next := testutils.NewPreferenceJudge("strong", "weak")
	p, err := NewPositionSwapJudge(next)
	require.NoError(t, err)

	raw, err := p.Compare(context.Background(), "weak", "strong")
	require.NoError(t, err)

	v := decodeVerdict(t, raw)
	assert.Equal(t, "b", v["winner"])
	assert.Equal(t, true, v["position_consistent"])
	assert.NotContains(t, v, "dimension_scores")
}

func TestPositionSwapJudge_BothOrderingsAsked(t *testing.T) {
	next := testutils.NewScriptedJudge(`{"winner": "a"}`, `{"winner": "b"}`)
	p, err := NewPositionSwapJudge(next)
	require.NoError(t, err)

	_, err = p.Compare(context.Background(), "x", "y")
	require.NoError(t, err)

	assert.ElementsMatch(t, []testutils.Comparison{{A: "x", B: "y"}, {A: "y", B: "x"}}, next.Calls())
}

func TestPositionSwapJudge_PositionBias(t *testing.T) {
	alwaysFirst := ports.JudgeFunc(func(context.Context, string, string) (string, error) {
		return `{"winner": "a"}`, nil
	})
	p, err := NewPositionSwapJudge(alwaysFirst)
	require.NoError(t, err)

	raw, err := p.Compare(context.Background(), "x", "y")
	require.NoError(t, err)

	v := decodeVerdict(t, raw)
	assert.Nil(t, v["winner"])
	assert.Equal(t, false, v["position_consistent"])

	// The tournament treats the combined verdict as undecided.
	res := application.ResolveVerdict(raw, v, domain.DefaultDimensionWeights())
	assert.Equal(t, domain.SideNone, res.Winner)
}

func TestPositionSwapJudge_UndecidedReply(t *testing.T) {
	p, err := NewPositionSwapJudge(testutils.NewScriptedJudge("no idea"))
	require.NoError(t, err)

	raw, err := p.Compare(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, false, decodeVerdict(t, raw)["position_consistent"])
}

func TestPositionSwapJudge_AveragesDimensionScores(t *testing.T) {
	quality := map[string]float64{"x": 8, "y": 4}
	// The judge favours whichever text it sees first by one point.
	biased := ports.JudgeFunc(func(_ context.Context, a, b string) (string, error) {
		var scores []string
		for _, d := range domain.AllDimensions {
			scores = append(scores, fmt.Sprintf(`"%s": {"h_a": %g, "h_b": %g}`, d, quality[a]+1, quality[b]))
		}
		return fmt.Sprintf(`{"dimension_scores": {%s, %s, %s, %s}}`, scores[0], scores[1], scores[2], scores[3]), nil
	})

	p, err := NewPositionSwapJudge(biased)
	require.NoError(t, err)

	raw, err := p.Compare(context.Background(), "x", "y")
	require.NoError(t, err)

	v := decodeVerdict(t, raw)
	assert.Equal(t, "a", v["winner"])
	assert.Equal(t, true, v["position_consistent"])

	dims, ok := v["dimension_scores"].(map[string]any)
	require.True(t, ok)
	require.Len(t, dims, len(domain.AllDimensions))
	impact := dims["impact"].(map[string]any)
	assert.Equal(t, 8.5, impact["h_a"])
	assert.Equal(t, 4.5, impact["h_b"])
}

func TestPositionSwapJudge_Error(t *testing.T) {
	boom := errors.New("provider down")
	next := ports.JudgeFunc(func(_ context.Context, a, _ string) (string, error) {
		if a == "y" {
			return "", boom
		}
		return `{"winner": "a"}`, nil
	})
	p, err := NewPositionSwapJudge(next)
	require.NoError(t, err)

	_, err = p.Compare(context.Background(), "x", "y")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "swapped order")
}

func TestPositionSwapJudge_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p, err := NewPositionSwapJudge(testutils.NewPreferenceJudge("x", "y"), WithSwapTracer(tp.Tracer("test")))
	require.NoError(t, err)

	_, err = p.Compare(context.Background(), "x", "y")
	require.NoError(t, err)

	names := map[string]bool{}
	var consistent bool
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
		for _, kv := range s.Attributes() {
			if kv.Key == attribute.Key("position_consistent") {
				consistent = kv.Value.AsBool()
			}
		}
	}
	assert.True(t, names["PositionSwapJudge.Compare"])
	assert.True(t, names["PositionSwapJudge.Run0"])
	assert.True(t, names["PositionSwapJudge.Run1"])
	assert.True(t, consistent)
}

func TestPositionSwapJudge_InTournament(t *testing.T) {
	texts := []string{"bronze", "gold", "silver"}
	swap, err := NewPositionSwapJudge(testutils.NewPreferenceJudge("gold", "silver", "bronze"))
	require.NoError(t, err)

	cands := make([]domain.Candidate, len(texts))
	for i, text := range texts {
		cands[i] = domain.NewCandidate(text)
	}

	tour, err := application.NewTournament(swap, application.WithStrategy(domain.StrategyRoundRobin))
	require.NoError(t, err)
	res := tour.Run(context.Background(), cands)

	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "gold", res.Ranked[0].Text)
	assert.Equal(t, "silver", res.Ranked[1].Text)
	assert.Equal(t, "bronze", res.Ranked[2].Text)
	assert.Equal(t, 3, res.Stats.Valid)
}
