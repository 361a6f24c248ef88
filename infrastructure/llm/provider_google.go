package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-tourney/internal/ports"
)

// GoogleDefaultModel is used when the configuration names no model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for the Gemini API.
type googleProvider struct {
	client          *genai.Client
	model           string
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		cc.HTTPOptions.BaseURL = baseURL
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		client:          client,
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest implements CoreLLM.
func (p *googleProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	opts := resolveRequest(req, p.model)

	resp, err := p.client.Models.GenerateContent(ctx, opts.model, buildGoogleContent(opts), buildGoogleConfig(opts))
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return ports.Completion{}, NewProviderError("google", ErrorTypeServerError, 0, "", ErrEmptyResponse)
	}

	var in, out int64
	if u := resp.UsageMetadata; u != nil {
		in, out = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	return ports.Completion{
		Text:      content,
		TokensIn:  tokenCount(in, opts.system+opts.prompt),
		TokensOut: tokenCount(out, content),
	}, nil
}

// buildGoogleContent builds the single user turn. The system prompt goes
// into GenerateContentConfig.SystemInstruction.
func buildGoogleContent(opts requestOptions) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(opts.prompt, genai.RoleUser)}
}

func buildGoogleConfig(opts requestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(opts.maxTokens, math.MaxInt32)), // #nosec G115 - bounded above
	}
	if opts.temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.temperature))
	}
	if opts.system != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.system, genai.RoleUser)
	}
	return config
}

func (p *googleProvider) handleError(err error) error {
	if perr := p.errorClassifier.ClassifyContextError(err); perr != nil {
		return perr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyMessage(apiErr.Message) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code, "request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		if isSafetyMessage(message) || hasSafetyReason(gErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code, "request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(gErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeNetwork, 0, "request failed", err)
}

func isSafetyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}

func hasSafetyReason(e *googleapi.Error) bool {
	for _, item := range e.Errors {
		if item.Reason == "SAFETY" || item.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}

// GetModel implements CoreLLM.
func (p *googleProvider) GetModel() string { return p.model }
