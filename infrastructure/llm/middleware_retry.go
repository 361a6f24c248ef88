package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// retryLLM retries retryable failures with jittered exponential backoff.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries a failed request up to maxRetries times. Only
// errors for which IsRetryable reports true are retried, and the wait
// between attempts doubles from baseDelay up to maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest implements CoreLLM.
func (r *retryLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		out, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ports.Completion{}, ctx.Err()
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return ports.Completion{}, lastErr
	}
	return ports.Completion{}, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = max(0, min(attempt, 30))
	delay := r.baseDelay << uint(attempt) // #nosec G115 - attempt is bounded between 0 and 30
	if delay <= 0 || delay > r.maxDelay {
		delay = r.maxDelay
	}

	// Jitter within [-25%, +25%].
	// #nosec G404 - jitter does not need a cryptographic source
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay - delay/4 + jitter

	return min(delay, r.maxDelay)
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }
