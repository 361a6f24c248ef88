package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLLMClient implements LLMClient.
type mockLLMClient struct{ model string }

func (m *mockLLMClient) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	return Completion{Text: "echo: " + req.Prompt, TokensIn: len(req.Prompt) / 4, TokensOut: 2}, nil
}

func (m *mockLLMClient) EstimateTokens(text string) int { return len(text) / 4 }

func (m *mockLLMClient) Model() string { return m.model }

func TestLLMClientInterface(t *testing.T) {
	var client LLMClient = &mockLLMClient{model: "test-model"}

	resp, err := client.Complete(context.Background(), CompletionRequest{Prompt: "compare these"})
	require.NoError(t, err)
	assert.Equal(t, "echo: compare these", resp.Text)
	assert.Equal(t, 3, client.EstimateTokens("twelve chars"))
	assert.Equal(t, "test-model", client.Model())
}

func TestJudgeFunc(t *testing.T) {
	var calls [][2]string
	var judge Judge = JudgeFunc(func(_ context.Context, a, b string) (string, error) {
		calls = append(calls, [2]string{a, b})
		if a == b {
			return "", errors.New("identical")
		}
		return `{"winner":"a"}`, nil
	})

	out, err := judge.Compare(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, `{"winner":"a"}`, out)

	_, err = judge.Compare(context.Background(), "z", "z")
	require.Error(t, err)
	assert.Equal(t, [][2]string{{"x", "y"}, {"z", "z"}}, calls)
}

func TestNopMetrics(t *testing.T) {
	var m MetricsCollector = NopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordLatency("op", time.Second, nil)
		m.RecordCounter("c", 1, map[string]string{"k": "v"})
		m.RecordGauge("g", 2, nil)
		m.RecordHistogram("h", 3, nil)
	})
}
