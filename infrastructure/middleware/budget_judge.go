// Package middleware provides judge decorators and metrics collection for
// tournament runs. Decorators wrap a ports.Judge and are themselves judges,
// so they compose in any order.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Budget defines resource consumption limits for a tournament run.
type Budget struct {
	// MaxTokens limits the estimated prompt tokens sent to the judge.
	// Zero means unlimited.
	MaxTokens int64

	// MaxCalls limits the number of judge calls.
	// Zero means unlimited.
	MaxCalls int64
}

// Usage is the consumption recorded so far.
type Usage struct {
	Tokens int64
	Calls  int64
}

// BudgetExceededError reports which limit refused a call.
type BudgetExceededError struct {
	// LimitType is "tokens" or "calls".
	LimitType string
	// Limit is the configured maximum.
	Limit int64
	// Used is the consumption the refused call would have reached.
	Used int64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit %d, would use %d", e.LimitType, e.Limit, e.Used)
}

// Unwrap lets errors.Is match ports.ErrBudgetExceeded.
func (e *BudgetExceededError) Unwrap() error { return ports.ErrBudgetExceeded }

// BudgetObserver provides observability hooks for budget operations.
// Implementations can add tracing, metrics, and logging without
// coupling observability concerns to core budget logic.
type BudgetObserver interface {
	// PreCheck is called once a call has been admitted. The returned
	// context is passed to the wrapped judge.
	PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context

	// PostCheck is called after the wrapped judge returns, or after a call
	// was refused, with the same context PreCheck returned.
	PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error)
}

// TokenEstimator approximates the token count of a text.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// BudgetJudge enforces call and token limits around a judge. Usage is
// reserved before the wrapped judge runs, so concurrent callers can never
// overshoot a limit. Once a limit is reached every further call fails with
// an error matching ports.ErrBudgetExceeded.
type BudgetJudge struct {
	next      ports.Judge
	budget    Budget
	estimator TokenEstimator
	observer  BudgetObserver

	mu    sync.Mutex
	usage Usage
}

var _ ports.Judge = (*BudgetJudge)(nil)

// NewBudgetJudge wraps next with budget. A nil estimator counts four
// characters per token; observer may be nil.
func NewBudgetJudge(next ports.Judge, budget Budget, estimator TokenEstimator, observer BudgetObserver) (*BudgetJudge, error) {
	if next == nil {
		return nil, fmt.Errorf("budget judge: next judge is required")
	}
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("budget judge: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("budget judge: max_calls cannot be negative, got %d", budget.MaxCalls)
	}
	if estimator == nil {
		estimator = charEstimator{}
	}
	return &BudgetJudge{next: next, budget: budget, estimator: estimator, observer: observer}, nil
}

// Compare implements ports.Judge.
func (b *BudgetJudge) Compare(ctx context.Context, textA, textB string) (string, error) {
	tokens := int64(b.estimator.EstimateTokens(textA) + b.estimator.EstimateTokens(textB))

	usage, err := b.reserve(tokens)
	if err != nil {
		if b.observer != nil {
			b.observer.PostCheck(ctx, usage, b.budget, 0, err)
		}
		return "", err
	}

	if b.observer != nil {
		ctx = b.observer.PreCheck(ctx, usage, b.budget)
	}

	start := time.Now()
	out, err := b.next.Compare(ctx, textA, textB)

	if b.observer != nil {
		b.observer.PostCheck(ctx, usage, b.budget, time.Since(start), err)
	}
	return out, err
}

// Usage returns the consumption recorded so far.
func (b *BudgetJudge) Usage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage
}

// reserve admits one call of the given size or reports the limit it would
// break. It returns the usage after the reservation.
func (b *BudgetJudge) reserve(tokens int64) (Usage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := Usage{Tokens: b.usage.Tokens + tokens, Calls: b.usage.Calls + 1}
	if b.budget.MaxCalls > 0 && next.Calls > b.budget.MaxCalls {
		return b.usage, &BudgetExceededError{LimitType: "calls", Limit: b.budget.MaxCalls, Used: next.Calls}
	}
	if b.budget.MaxTokens > 0 && next.Tokens > b.budget.MaxTokens {
		return b.usage, &BudgetExceededError{LimitType: "tokens", Limit: b.budget.MaxTokens, Used: next.Tokens}
	}
	b.usage = next
	return next, nil
}

// BudgetFromConfig converts an application.BudgetConfig to a Budget.
func BudgetFromConfig(config application.BudgetConfig) Budget {
	return Budget{
		MaxTokens: config.MaxTokens,
		MaxCalls:  config.MaxCalls,
	}
}

type charEstimator struct{}

func (charEstimator) EstimateTokens(text string) int { return (len(text) + 3) / 4 }
