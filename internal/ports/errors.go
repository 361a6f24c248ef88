package ports

import (
	"errors"
	"fmt"
)

// Errors returned by judge and LLM collaborators.
var (
	// ErrBudgetExceeded indicates that a judge refused a call because its
	// call or token budget is spent.
	ErrBudgetExceeded = errors.New("judge budget exceeded")

	// ErrInvalidResponse indicates that the service returned an unusable
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// JudgeError wraps a failed comparison with the judge's name.
type JudgeError struct {
	// Judge identifies the judge implementation, usually its model name.
	Judge string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for JudgeError.
func (e *JudgeError) Error() string {
	return fmt.Sprintf("judge error: judge=%s, err=%v", e.Judge, e.Err)
}

// Unwrap returns the underlying error.
func (e *JudgeError) Unwrap() error { return e.Err }

// NewJudgeError creates a new JudgeError.
func NewJudgeError(judge string, err error) *JudgeError {
	return &JudgeError{Judge: judge, Err: err}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
