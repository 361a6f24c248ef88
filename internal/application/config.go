package application

// Config is the complete runtime configuration of a tournament run and
// serves as the primary configuration entry point for the CLI.
// Values are layered from defaults, an optional YAML file, and TOURNEY_
// environment variables by LoadConfig.
type Config struct {
	// Tournament controls pairing and rating arithmetic.
	Tournament TournamentConfig `yaml:"tournament" koanf:"tournament" validate:"required"`
	// Judge selects and tunes the LLM judge used for every comparison.
	Judge JudgeConfig `yaml:"judge" koanf:"judge" validate:"required"`
	// Log controls the zap logger built by the CLI.
	Log LogConfig `yaml:"log" koanf:"log"`
	// Metrics controls Prometheus metric collection.
	Metrics MetricsConfig `yaml:"metrics" koanf:"metrics"`
}

// TournamentConfig defines how candidates are paired and rated.
type TournamentConfig struct {
	// Strategy is one of random, round_robin or swiss.
	Strategy string `yaml:"strategy" koanf:"strategy" validate:"required,strategy"`
	// KFactor is the Elo K factor applied to every rating update.
	KFactor int `yaml:"k_factor" koanf:"k_factor" validate:"min=1,max=400"`
	// RandomRounds is the number of random pairings. Zero selects three
	// times the number of candidates.
	RandomRounds int `yaml:"random_rounds" koanf:"random_rounds" validate:"min=0,max=100000"`
	// Seed makes random pairing reproducible. Zero draws a fresh seed.
	Seed uint64 `yaml:"seed" koanf:"seed"`
	// Weights maps dimension names to their share of the composite rating.
	// When empty the default weights are used.
	Weights map[string]float64 `yaml:"weights" koanf:"weights" validate:"omitempty,dimension_weights"`
}

// JudgeConfig selects the LLM provider and the resilience policy wrapped
// around it.
type JudgeConfig struct {
	// Provider names the LLM backend: openai, anthropic, google or mock.
	Provider string `yaml:"provider" koanf:"provider" validate:"required,provider"`
	// Model is the provider's model identifier.
	Model string `yaml:"model" koanf:"model" validate:"required,min=1,max=200"`
	// APIKey authenticates with the provider. It is usually supplied
	// through TOURNEY_JUDGE__API_KEY rather than a file.
	APIKey string `yaml:"api_key" koanf:"api_key"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" koanf:"base_url" validate:"omitempty,url"`
	// Mode is winner for a single verdict or dimensions for per-dimension
	// scores.
	Mode string `yaml:"mode" koanf:"mode" validate:"required,oneof=winner dimensions"`
	// Temperature is passed to the provider.
	Temperature float64 `yaml:"temperature" koanf:"temperature" validate:"min=0,max=2"`
	// MaxTokens caps the judge's reply.
	MaxTokens int `yaml:"max_tokens" koanf:"max_tokens" validate:"min=1,max=32000"`
	// PositionSwap asks the judge twice with the candidates swapped and only
	// accepts verdicts that agree.
	PositionSwap bool `yaml:"position_swap" koanf:"position_swap"`
	// TimeoutSeconds bounds a single provider call.
	TimeoutSeconds int `yaml:"timeout_seconds" koanf:"timeout_seconds" validate:"min=1,max=600"`
	// Budget caps the calls and tokens a run may spend.
	Budget BudgetConfig `yaml:"budget" koanf:"budget"`
	// Retry configures recovery from transient provider failures.
	Retry RetryConfig `yaml:"retry" koanf:"retry"`
	// RateLimit throttles provider calls.
	RateLimit RateLimitConfig `yaml:"rate_limit" koanf:"rate_limit"`
	// CircuitBreaker stops calling a failing provider for a cooldown.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" koanf:"circuit_breaker"`
}

// BudgetConfig establishes resource consumption limits for a run.
// Zero disables the corresponding limit.
type BudgetConfig struct {
	// MaxCalls limits the number of judge calls.
	MaxCalls int64 `yaml:"max_calls" koanf:"max_calls" validate:"min=0,max=1000000"`
	// MaxTokens limits the estimated tokens sent to the judge.
	MaxTokens int64 `yaml:"max_tokens" koanf:"max_tokens" validate:"min=0,max=100000000"`
}

// RetryConfig specifies the backoff applied to retryable provider errors.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first attempt. Zero
	// disables retries.
	MaxAttempts int `yaml:"max_attempts" koanf:"max_attempts" validate:"min=0,max=10"`
	// InitialWaitMS is the base delay before the first retry.
	InitialWaitMS int `yaml:"initial_wait_ms" koanf:"initial_wait_ms" validate:"min=0,max=60000"`
	// MaxWaitMS caps the delay between retries.
	MaxWaitMS int `yaml:"max_wait_ms" koanf:"max_wait_ms" validate:"min=0,max=300000,gtefield=InitialWaitMS"`
}

// RateLimitConfig throttles provider calls with a token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second" validate:"min=0,max=10000"`
	// Burst is the bucket size.
	Burst int `yaml:"burst" koanf:"burst" validate:"min=0,max=10000"`
}

// CircuitBreakerConfig controls when a failing provider is bypassed.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	MaxFailures int `yaml:"max_failures" koanf:"max_failures" validate:"min=0,max=1000"`
	// CooldownSeconds is how long the circuit stays open.
	CooldownSeconds int `yaml:"cooldown_seconds" koanf:"cooldown_seconds" validate:"min=0,max=3600"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" koanf:"level" validate:"oneof=debug info warn error"`
	// Format is json for production output or console for humans.
	Format string `yaml:"format" koanf:"format" validate:"oneof=json console"`
}

// MetricsConfig controls Prometheus metric collection.
type MetricsConfig struct {
	// Enabled registers tournament and LLM metrics.
	Enabled bool `yaml:"enabled" koanf:"enabled"`
	// File is written in the Prometheus text format after the run when set.
	File string `yaml:"file" koanf:"file"`
}

// Providers lists the judge providers accepted by configuration.
var Providers = []string{"openai", "anthropic", "google", "mock"}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Tournament: TournamentConfig{
			Strategy: "round_robin",
			KFactor:  32,
		},
		Judge: JudgeConfig{
			Provider:       "mock",
			Model:          "mock-judge",
			Mode:           "winner",
			Temperature:    0,
			MaxTokens:      512,
			TimeoutSeconds: 60,
			Retry: RetryConfig{
				MaxAttempts:   3,
				InitialWaitMS: 500,
				MaxWaitMS:     10000,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:     5,
				CooldownSeconds: 30,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
