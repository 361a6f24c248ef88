// Package judge implements ports.Judge on top of an LLM client.
package judge

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Mode selects the shape of verdict the judge is asked for.
type Mode string

const (
	// ModeWinner asks for {"winner": "a"|"b"}.
	ModeWinner Mode = "winner"
	// ModeDimensions asks for per-dimension scores under "dimension_scores".
	ModeDimensions Mode = "dimensions"
)

// Default configuration values.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.0
)

// DefaultSystemPrompt frames the model as an impartial reviewer.
const DefaultSystemPrompt = "You are an impartial expert reviewer comparing two research proposals. " +
	"Judge substance, not length or position. Reply with JSON only."

const winnerPrompt = `Compare the two proposals below.

Proposal A:
<<<
{{.TextA}}
>>>

Proposal B:
<<<
{{.TextB}}
>>>

Decide which proposal is stronger overall.
Respond with exactly this JSON:
{"winner": "a" or "b", "reasoning": "<one or two sentences>"}
`

const dimensionsPrompt = `Compare the two proposals below.

Proposal A:
<<<
{{.TextA}}
>>>

Proposal B:
<<<
{{.TextB}}
>>>

Score each proposal from 1 to 10 on every dimension: {{join .Dimensions ", "}}.
Respond with exactly this JSON, using h_a for proposal A and h_b for proposal B:
{"dimension_scores": { {{- range $i, $d := .Dimensions}}{{if $i}}, {{end}}"{{$d}}": {"h_a": <score>, "h_b": <score>}{{end -}} }}
`

// Config defines how the judge phrases its requests.
type Config struct {
	// Mode is winner or dimensions.
	Mode Mode `yaml:"mode" validate:"required,oneof=winner dimensions"`

	// PromptTemplate overrides the built-in prompt for Mode. It is a Go
	// template over .TextA, .TextB and .Dimensions.
	PromptTemplate string `yaml:"prompt_template" validate:"omitempty,min=20"`

	// System overrides DefaultSystemPrompt.
	System string `yaml:"system"`

	// Temperature is passed to the provider.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`

	// MaxTokens caps the reply. Zero selects DefaultMaxTokens.
	MaxTokens int `yaml:"max_tokens" validate:"min=0,max=32000"`

	// MaxTextLength truncates each candidate text before it is rendered.
	// Zero disables truncation.
	MaxTextLength int `yaml:"max_text_length" validate:"min=0"`
}

// promptData is the template input.
type promptData struct {
	TextA      string
	TextB      string
	Dimensions []string
}

// LLMJudge compares candidates by prompting an LLM. It is stateless and
// safe for concurrent use.
type LLMJudge struct {
	client ports.LLMClient
	config Config
	tmpl   *template.Template
	logger *zap.Logger
}

var _ ports.Judge = (*LLMJudge)(nil)

// NewLLMJudge validates config and compiles its prompt template.
func NewLLMJudge(client ports.LLMClient, config Config, logger *zap.Logger) (*LLMJudge, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid judge configuration: %w", err)
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.System == "" {
		config.System = DefaultSystemPrompt
	}

	text := config.PromptTemplate
	if text == "" {
		text = winnerPrompt
		if config.Mode == ModeDimensions {
			text = dimensionsPrompt
		}
	}

	// Candidate text is substituted as data, never parsed as template.
	tmpl, err := template.New("judgePrompt").Funcs(TemplateFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge prompt template: %w", err)
	}

	return &LLMJudge{
		client: client,
		config: config,
		tmpl:   tmpl,
		logger: logger.With(zap.String("judge", client.Model())),
	}, nil
}

// Name identifies the judge by its model.
func (j *LLMJudge) Name() string { return j.client.Model() }

// Prompt renders the prompt sent for the pair (textA, textB).
func (j *LLMJudge) Prompt(textA, textB string) (string, error) {
	data := promptData{
		TextA:      textA,
		TextB:      textB,
		Dimensions: dimensionNames(),
	}
	if n := j.config.MaxTextLength; n > 0 {
		data.TextA = truncate(textA, n)
		data.TextB = truncate(textB, n)
	}

	var buf bytes.Buffer
	if err := j.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// Compare implements ports.Judge. The raw model output is returned
// unparsed; errors are wrapped in a *ports.JudgeError.
func (j *LLMJudge) Compare(ctx context.Context, textA, textB string) (string, error) {
	prompt, err := j.Prompt(textA, textB)
	if err != nil {
		return "", ports.NewJudgeError(j.Name(), err)
	}

	temperature := j.config.Temperature
	out, err := j.client.Complete(ctx, ports.CompletionRequest{
		Prompt:      prompt,
		System:      j.config.System,
		Temperature: &temperature,
		MaxTokens:   j.config.MaxTokens,
	})
	if err != nil {
		return "", ports.NewJudgeError(j.Name(), err)
	}

	j.logger.Debug("judge replied",
		zap.Int("tokens_in", out.TokensIn),
		zap.Int("tokens_out", out.TokensOut),
		zap.Int("reply_length", len(out.Text)))

	return out.Text, nil
}

func dimensionNames() []string {
	names := make([]string, len(domain.AllDimensions))
	for i, d := range domain.AllDimensions {
		names[i] = string(d)
	}
	return names
}
