package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-tourney/internal/ports"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM for the OpenAI chat completions API.
type openAIProvider struct {
	client          *openai.Client
	model           string
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = baseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIProvider{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest implements CoreLLM.
func (p *openAIProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	opts := resolveRequest(req, p.model)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(opts))
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return ports.Completion{}, NewProviderError("openai", ErrorTypeServerError, 0, "", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	return ports.Completion{
		Text:      content,
		TokensIn:  tokenCount(int64(resp.Usage.PromptTokens), opts.system+opts.prompt),
		TokensOut: tokenCount(int64(resp.Usage.CompletionTokens), content),
	}, nil
}

func (p *openAIProvider) buildRequest(opts requestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: opts.prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     opts.model,
		Messages:  messages,
		MaxTokens: opts.maxTokens,
	}
	if opts.temperature != nil {
		req.Temperature = float32(*opts.temperature)
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if perr := p.errorClassifier.ClassifyContextError(err); perr != nil {
		return perr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request error", err)
	}

	return NewProviderError("openai", ErrorTypeNetwork, 0, "request failed", err)
}

// GetModel implements CoreLLM.
func (p *openAIProvider) GetModel() string { return p.model }
