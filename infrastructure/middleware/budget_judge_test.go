package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/testutils"
)

func TestNewBudgetJudge_Validation(t *testing.T) {
	judge := testutils.NewScriptedJudge(`{"winner": "a"}`)

	tests := []struct {
		name    string
		next    ports.Judge
		budget  Budget
		wantErr string
	}{
		{name: "nil judge", next: nil, wantErr: "next judge is required"},
		{name: "negative tokens", next: judge, budget: Budget{MaxTokens: -1}, wantErr: "max_tokens cannot be negative"},
		{name: "negative calls", next: judge, budget: Budget{MaxCalls: -5}, wantErr: "max_calls cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBudgetJudge(tt.next, tt.budget, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBudgetJudge_CallLimit(t *testing.T) {
	next := testutils.NewScriptedJudge(`{"winner": "a"}`)
	b, err := NewBudgetJudge(next, Budget{MaxCalls: 2}, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		out, err := b.Compare(ctx, "x", "y")
		require.NoError(t, err)
		assert.Equal(t, `{"winner": "a"}`, out)
	}

	_, err = b.Compare(ctx, "x", "y")
	require.ErrorIs(t, err, ports.ErrBudgetExceeded)

	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "calls", exceeded.LimitType)
	assert.Equal(t, int64(2), exceeded.Limit)
	assert.Equal(t, int64(3), exceeded.Used)

	assert.Len(t, next.Calls(), 2)
	assert.Equal(t, int64(2), b.Usage().Calls)
}

func TestBudgetJudge_TokenLimit(t *testing.T) {
	next := testutils.NewScriptedJudge(`{"winner": "b"}`)
	b, err := NewBudgetJudge(next, Budget{MaxTokens: 10}, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	// Two eight-character texts estimate to four tokens per call.
	for range 2 {
		_, err := b.Compare(ctx, "12345678", "abcdefgh")
		require.NoError(t, err)
	}
	_, err = b.Compare(ctx, "12345678", "abcdefgh")

	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "tokens", exceeded.LimitType)
	assert.Equal(t, Usage{Tokens: 8, Calls: 2}, b.Usage())
}

func TestBudgetJudge_Unlimited(t *testing.T) {
	b, err := NewBudgetJudge(testutils.NewScriptedJudge("ok"), Budget{}, nil, nil)
	require.NoError(t, err)

	for range 100 {
		_, err := b.Compare(context.Background(), "a", "b")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(100), b.Usage().Calls)
}

func TestBudgetJudge_ConcurrentCallsNeverOvershoot(t *testing.T) {
	var served atomic.Int64
	next := ports.JudgeFunc(func(context.Context, string, string) (string, error) {
		served.Add(1)
		return `{"winner": "a"}`, nil
	})
	b, err := NewBudgetJudge(next, Budget{MaxCalls: 10}, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var refused atomic.Int64
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Compare(context.Background(), "a", "b"); errors.Is(err, ports.ErrBudgetExceeded) {
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), served.Load())
	assert.Equal(t, int64(40), refused.Load())
}

func TestBudgetJudge_PassesThroughJudgeErrors(t *testing.T) {
	boom := errors.New("judge down")
	next := testutils.NewScriptedJudgeEntries(testutils.ScriptEntry{Err: boom})
	b, err := NewBudgetJudge(next, Budget{MaxCalls: 5}, nil, nil)
	require.NoError(t, err)

	_, err = b.Compare(context.Background(), "a", "b")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), b.Usage().Calls, "failed calls still consume budget")
}

func TestBudgetJudge_Observer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	metrics := &testutils.RecordingMetrics{}
	observer := NewOTelBudgetObserverWithTracer(metrics, "judge-model", tp.Tracer("test"))

	b, err := NewBudgetJudge(testutils.NewScriptedJudge("ok"), Budget{MaxCalls: 2}, nil, observer)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		_, _ = b.Compare(ctx, "a", "b")
	}

	last, ok := metrics.Last(MetricBudgetCallsUsed)
	require.True(t, ok)
	assert.Equal(t, 2.0, last.Value)
	assert.Equal(t, "calls_only", last.Labels["budget_limit"])

	remaining, ok := metrics.Last(MetricBudgetRemaining)
	require.True(t, ok)
	assert.Equal(t, 0.0, remaining.Value)
	assert.Equal(t, "calls", remaining.Labels["resource"])

	assert.Equal(t, 1.0, metrics.Sum(MetricBudgetExceeded))
	assert.Len(t, metrics.Samples(MetricBudgetJudgeDuration), 2)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "BudgetJudge.Compare", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	// The second call used the whole call budget.
	var critical bool
	for _, ev := range spans[1].Events() {
		critical = critical || ev.Name == "budget.threshold.critical"
	}
	assert.True(t, critical)
}

func TestBudgetLimitLabel(t *testing.T) {
	assert.Equal(t, "unlimited", budgetLimitLabel(Budget{}))
	assert.Equal(t, "tokens_only", budgetLimitLabel(Budget{MaxTokens: 1}))
	assert.Equal(t, "calls_only", budgetLimitLabel(Budget{MaxCalls: 1}))
	assert.Equal(t, "tokens_and_calls", budgetLimitLabel(Budget{MaxTokens: 1, MaxCalls: 1}))
}

func TestBudgetFromConfig(t *testing.T) {
	b := BudgetFromConfig(application.BudgetConfig{MaxCalls: 40, MaxTokens: 9000})
	assert.Equal(t, Budget{MaxCalls: 40, MaxTokens: 9000}, b)
}
