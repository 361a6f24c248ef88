package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Environment variables read by LoadConfig.
const (
	EnvPrefix     = "TOURNEY_"
	EnvConfigPath = "TOURNEY_CONFIG"
	envSeparator  = "__"
)

// LoadConfig builds a Config by layering defaults, an optional YAML file,
// and environment variables, then validates the result.
// Order of precedence (low -> high):
//  1. DefaultConfig
//  2. the YAML file at path, or at $TOURNEY_CONFIG when path is empty
//  3. env (prefix TOURNEY_, "__" separates nested keys, so
//     TOURNEY_JUDGE__API_KEY sets judge.api_key)
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ports.NewConfigError(path, ports.ErrConfigNotFound)
			}
			return nil, ports.NewConfigError(path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, envSeparator, ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, ports.NewConfigError(EnvPrefix+"*", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig checks cfg against its struct tags and the tournament
// rules. Every violation is collected into one *domain.ValidationError.
func ValidateConfig(cfg *Config) error {
	v, err := NewConfigValidator()
	if err != nil {
		return err
	}

	verr := domain.NewValidationError("Config")
	if err := v.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate configuration: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.AddError(describeFieldError(fe))
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// NewConfigValidator returns a validator that knows the tournament rules
// and reports fields by their yaml names.
func NewConfigValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
}

// registerCustomValidators registers the strategy, dimension weight and
// provider rules with v, failing on the first rule that cannot be registered.
func registerCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"strategy":          validateStrategy,
		"dimension_weights": validateDimensionWeights,
		"provider":          validateProvider,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validateStrategy(fl validator.FieldLevel) bool {
	_, err := domain.ParseStrategy(fl.Field().String())
	return err == nil
}

func validateDimensionWeights(fl validator.FieldLevel) bool {
	weights, ok := fl.Field().Interface().(map[string]float64)
	if !ok {
		return false
	}
	_, err := domain.ParseDimensionWeights(weights)
	return err == nil
}

func validateProvider(fl validator.FieldLevel) bool {
	return slices.Contains(Providers, strings.ToLower(fl.Field().String()))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "strategy":
		return fmt.Sprintf("%s: unknown strategy %q, want one of %v", field, fe.Value(), domain.Strategies)
	case "dimension_weights":
		return fmt.Sprintf("%s: weights must cover every dimension, be non-negative and sum to 1.0", field)
	case "provider":
		return fmt.Sprintf("%s: unknown provider %q, want one of %v", field, fe.Value(), Providers)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "min", "max", "gtefield":
		return fmt.Sprintf("%s failed %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
}

// DimensionWeights converts the configured weights into domain weights. Empty
// configuration selects the defaults.
func (c TournamentConfig) DimensionWeights() (domain.DimensionWeights, error) {
	if len(c.Weights) == 0 {
		return domain.DefaultDimensionWeights(), nil
	}
	return domain.ParseDimensionWeights(c.Weights)
}

// TournamentOptions converts the configuration into options for
// NewTournament.
func (c TournamentConfig) TournamentOptions() ([]TournamentOption, error) {
	strategy, err := domain.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	weights, err := c.DimensionWeights()
	if err != nil {
		return nil, err
	}

	opts := []TournamentOption{
		WithStrategy(strategy),
		WithKFactor(c.KFactor),
		WithRandomRounds(c.RandomRounds),
		WithWeights(weights),
	}
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed))
	}
	return opts, nil
}
