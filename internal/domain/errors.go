package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by the ranking engine.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownStrategy indicates that a pairing strategy name is not recognized.
	ErrUnknownStrategy = errors.New("unknown pairing strategy")

	// ErrInvalidKFactor indicates a non-positive K factor.
	ErrInvalidKFactor = errors.New("k factor must be positive")

	// ErrNoJudge indicates that a tournament was constructed without a judge.
	ErrNoJudge = errors.New("judge is required")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap ties every ValidationError to ErrInvalidConfiguration so callers
// can test with errors.Is.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// MatchError records why a single pairwise comparison could not be scored.
// It never aborts a run; the orchestrator keeps it on the MatchRecord.
type MatchError struct {
	// Round is the 1-based round the match belonged to.
	Round int

	// Pair is the pair of candidate indices being compared.
	Pair Pair

	// Err is the underlying cause, typically from the judge.
	Err error
}

// Error implements the error interface for MatchError.
func (e *MatchError) Error() string {
	return fmt.Sprintf("match error: round=%d, pair=(%d,%d), err=%v", e.Round, e.Pair.A, e.Pair.B, e.Err)
}

// Unwrap returns the underlying error.
func (e *MatchError) Unwrap() error { return e.Err }
