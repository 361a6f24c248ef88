// Package testutils provides deterministic judges and LLM clients for tests.
package testutils

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ahrav/go-tourney/internal/ports"
)

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched against prompts as a substring. The empty pattern
	// is the default response.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// TokensUsed is reported as output tokens.
	TokensUsed int
}

// MockLLMClient implements ports.LLMClient with pattern-matched responses.
// It records every request and is safe for concurrent use.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	err       error
	requests  []ports.CompletionRequest
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

// NewMockLLMClient returns a client that answers every prompt with an
// explicit verdict for side A unless another pattern matches.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{model: model}
	m.AddResponse(MockResponse{Pattern: "", Response: `{"winner": "a"}`, TokensUsed: 6})
	return m
}

// AddResponse adds or replaces a response pattern. Longer patterns are
// matched first.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = slices.DeleteFunc(m.responses, func(x MockResponse) bool { return x.Pattern == r.Pattern })
	m.responses = append(m.responses, r)
	slices.SortStableFunc(m.responses, func(a, b MockResponse) int {
		return len(b.Pattern) - len(a.Pattern)
	})
}

// SetError makes every subsequent call fail with err.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return ports.Completion{}, m.err
	}

	for _, r := range m.responses {
		if strings.Contains(req.Prompt, r.Pattern) {
			return ports.Completion{
				Text:      r.Response,
				TokensIn:  m.EstimateTokens(req.Prompt),
				TokensOut: r.TokensUsed,
			}, nil
		}
	}
	return ports.Completion{}, ports.ErrInvalidResponse
}

// EstimateTokens implements ports.LLMClient with a four characters per
// token heuristic.
func (m *MockLLMClient) EstimateTokens(text string) int { return (len(text) + 3) / 4 }

// Model implements ports.LLMClient.
func (m *MockLLMClient) Model() string { return m.model }

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// CallCount returns the number of requests received.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
