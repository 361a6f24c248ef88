package llm

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Parameter ranges shared by the providers.
const (
	// DefaultMaxTokens is used when neither the request nor the client sets
	// a limit. Anthropic requires one on every request.
	DefaultMaxTokens = 1024
	// MinTemperature is the minimum allowed value for temperature.
	MinTemperature = 0.0
	// MaxTemperature is the maximum allowed value for temperature.
	MaxTemperature = 2.0
	// MinTimeout is the minimum allowed duration for a request timeout.
	MinTimeout = 1 * time.Second
	// MaxTimeout is the maximum allowed duration for a request timeout.
	MaxTimeout = 10 * time.Minute
)

// requestOptions is a CompletionRequest with provider defaults applied.
type requestOptions struct {
	prompt      string
	system      string
	model       string
	maxTokens   int
	temperature *float64
}

func resolveRequest(req ports.CompletionRequest, defaultModel string) requestOptions {
	opts := requestOptions{
		prompt:    req.Prompt,
		system:    req.System,
		model:     req.Model,
		maxTokens: req.MaxTokens,
	}
	if opts.model == "" {
		opts.model = defaultModel
	}
	if opts.maxTokens <= 0 {
		opts.maxTokens = DefaultMaxTokens
	}
	if req.Temperature != nil {
		t := clamp(*req.Temperature, MinTemperature, MaxTemperature)
		opts.temperature = &t
	}
	return opts
}

// tokenCount prefers the provider's reported count and estimates otherwise.
func tokenCount(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return EstimateTokens(text)
}

// ValidateBaseURL ensures a base URL has an http or https scheme and a
// host. The empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps a timeout into [MinTimeout, MaxTimeout].
func ValidateTimeout(d time.Duration) time.Duration {
	return max(MinTimeout, min(d, MaxTimeout))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
