// Package llm provides a unified client for the LLM providers that act as
// tournament judges, with rate limiting, circuit breaking, retries, metrics
// and tracing layered on as middleware.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	out, err := client.Complete(ctx, ports.CompletionRequest{Prompt: "Hello"})
//
// With middleware, listed outermost first:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-haiku-latest",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("anthropic"),
//	        llm.MetricsMiddleware(collector, "anthropic"),
//	        llm.RetryMiddleware(3, 500*time.Millisecond, 10*time.Second),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.RateLimitMiddleware(2, 4),
//	        llm.TimeoutMiddleware(60 * time.Second),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// Middleware wraps CoreLLM values, so every provider and every middleware
// layer satisfies it.
type CoreLLM interface {
	// DoRequest sends one completion request. An empty req.Model selects
	// the provider's configured model.
	DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// TokenEstimator provides pluggable token estimation strategies.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider. The mock provider
	// does not need one.
	APIKey string

	// Model specifies which LLM model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	BaseURL string

	// Timeout sets the HTTP client timeout for providers that support it.
	// Zero leaves the provider default in place.
	Timeout time.Duration

	// MaxTokens is applied to requests that do not set their own limit.
	MaxTokens int

	// Temperature is applied to requests that do not set their own.
	Temperature *float64

	// TokenEstimator provides custom token counting logic.
	// If nil, a character-based estimator is used.
	TokenEstimator TokenEstimator

	// Middleware is applied in order, so the first entry is the outermost
	// layer.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a provider and its
// middleware chain.
type Client struct {
	core        CoreLLM
	estimator   TokenEstimator
	maxTokens   int
	temperature *float64
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a client for the named provider and assembles its
// middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	factory, ok := GetProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q, registered: %v", providerType, ProviderNames())
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}
	return NewClientFromCore(core, config), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is used by tests and by
// callers that construct providers themselves.
func NewClientFromCore(core CoreLLM, config ClientConfig) *Client {
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = SimpleTokenEstimator{}
	}

	return &Client{
		core:        core,
		estimator:   estimator,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
	}
}

// Complete sends req through the middleware chain. Client defaults fill in
// MaxTokens and Temperature when the request leaves them unset.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.maxTokens
	}
	if req.Temperature == nil {
		req.Temperature = c.temperature
	}
	return c.core.DoRequest(ctx, req)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) int { return c.estimator.EstimateTokens(text) }

// Model returns the model name of the underlying provider.
func (c *Client) Model() string { return c.core.GetModel() }

// SimpleTokenEstimator assumes roughly four characters per token, which is
// close enough for English prose when budgeting.
type SimpleTokenEstimator struct{}

// EstimateTokens implements TokenEstimator.
func (SimpleTokenEstimator) EstimateTokens(text string) int { return EstimateTokens(text) }

// EstimateTokens applies the four characters per token heuristic.
func EstimateTokens(text string) int { return (len(text) + 3) / 4 }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory registers a provider under name, replacing any
// previous registration.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[name] = factory
}

// GetProviderFactory returns the factory registered under name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := providerFactories[name]
	return f, ok
}

// ProviderNames returns the registered provider names in sorted order.
func ProviderNames() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
