package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-tourney/internal/ports"
)

// AnthropicDefaultModel is used when the configuration names no model.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for the Anthropic messages API.
type anthropicProvider struct {
	client          anthropic.Client
	model           string
	errorClassifier *ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries are handled by RetryMiddleware.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(ValidateTimeout(config.Timeout)))
	}

	return &anthropicProvider{
		client:          anthropic.NewClient(opts...),
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest implements CoreLLM.
func (p *anthropicProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	opts := resolveRequest(req, p.model)

	message, err := p.client.Messages.New(ctx, p.buildParams(opts))
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		return ports.Completion{}, NewProviderError("anthropic", ErrorTypeServerError, 0, "", ErrEmptyResponse)
	}

	content := text.String()
	return ports.Completion{
		Text:      content,
		TokensIn:  tokenCount(message.Usage.InputTokens, opts.system+opts.prompt),
		TokensOut: tokenCount(message.Usage.OutputTokens, content),
	}, nil
}

func (p *anthropicProvider) buildParams(opts requestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.model),
		MaxTokens: int64(opts.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(opts.prompt)),
		},
	}
	if opts.temperature != nil {
		// Anthropic accepts [0, 1].
		params.Temperature = anthropic.Float(min(*opts.temperature, 1.0))
	}
	if opts.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.system}}
	}
	return params
}

func (p *anthropicProvider) handleError(err error) error {
	if perr := p.errorClassifier.ClassifyContextError(err); perr != nil {
		return perr
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's overloaded status.
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, "messages request failed", err)
	}

	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}

// GetModel implements CoreLLM.
func (p *anthropicProvider) GetModel() string { return p.model }
