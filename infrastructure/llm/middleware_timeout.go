package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// timeoutLLM bounds each request with its own deadline.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware gives every request a deadline of timeout. Placed
// inside RetryMiddleware it bounds each attempt; outside, the whole call.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest implements CoreLLM.
func (t *timeoutLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }
