package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ahrav/go-tourney/internal/ports"
)

func init() {
	RegisterProviderFactory("mock", newMockProvider)
}

// MockCoreLLM provides a configurable CoreLLM for middleware tests.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail with Error.
	FailUntilAttempt int

	// Tracking
	CallCount      int
	Requests       []ports.CompletionRequest
	CallTimestamps []time.Time
}

var _ CoreLLM = (*MockCoreLLM)(nil)

// NewMockCoreLLM creates a mock that succeeds with a fixed response.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  `{"winner": "a"}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	m.mu.Lock()
	m.CallCount++
	attempt := m.CallCount
	m.Requests = append(m.Requests, req)
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay, resp, err := m.ResponseDelay, m.Response, m.Error
	failUntil := m.FailUntilAttempt
	in, out := m.TokensIn, m.TokensOut
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ports.Completion{}, ctx.Err()
		case <-timer.C:
		}
	}

	if err != nil && (failUntil == 0 || attempt <= failUntil) {
		return ports.Completion{}, err
	}
	return ports.Completion{Text: resp, TokensIn: in, TokensOut: out}, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// Calls returns the number of requests received.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// mockProvider is the "mock" provider: an offline judge whose verdict is a
// stable hash of the prompt. It lets the CLI run without credentials.
type mockProvider struct {
	model string
}

func newMockProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = "mock-judge"
	}
	return &mockProvider{model: model}, nil
}

// DoRequest implements CoreLLM. Prompts that mention dimension_scores get
// per-dimension scores; all others get a winner.
func (p *mockProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}

	h := xxhash.Sum64String(req.System + "\x00" + req.Prompt)

	var text string
	if strings.Contains(req.Prompt, "dimension_scores") {
		var b strings.Builder
		b.WriteString(`{"dimension_scores": {`)
		for i, d := range []string{"scientific_merit", "practical_value", "impact", "communication"} {
			if i > 0 {
				b.WriteString(", ")
			}
			a, bs := 1+(h>>(i*8))%10, 1+(h>>(i*8+4))%10
			fmt.Fprintf(&b, `%q: {"h_a": %d, "h_b": %d}`, d, a, bs)
		}
		b.WriteString("}}")
		text = b.String()
	} else {
		winner := "a"
		if h%2 == 1 {
			winner = "b"
		}
		text = fmt.Sprintf(`{"winner": %q, "reasoning": "mock verdict"}`, winner)
	}

	return ports.Completion{
		Text:      text,
		TokensIn:  EstimateTokens(req.System + req.Prompt),
		TokensOut: EstimateTokens(text),
	}, nil
}

// GetModel implements CoreLLM.
func (p *mockProvider) GetModel() string { return p.model }
