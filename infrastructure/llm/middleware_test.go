package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tourney/internal/ports"
)

var errTransient = NewProviderError("mock", ErrorTypeServerError, 503, "unavailable", nil)

func TestRetryMiddleware(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		core := NewMockCoreLLM()
		core.Error = errTransient
		core.FailUntilAttempt = 2

		llm := RetryMiddleware(3, time.Millisecond, 5*time.Millisecond)(core)
		out, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})

		require.NoError(t, err)
		assert.Equal(t, `{"winner": "a"}`, out.Text)
		assert.Equal(t, 3, core.Calls())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		core := NewMockCoreLLM()
		core.Error = errTransient

		llm := RetryMiddleware(2, time.Millisecond, 5*time.Millisecond)(core)
		_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})

		require.ErrorIs(t, err, errTransient)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Equal(t, 3, core.Calls())
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		core := NewMockCoreLLM()
		core.Error = NewProviderError("mock", ErrorTypeAuthentication, 401, "", nil)

		llm := RetryMiddleware(3, time.Millisecond, 5*time.Millisecond)(core)
		_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "attempts")
		assert.Equal(t, 1, core.Calls())
	})

	t.Run("stops waiting when the context ends", func(t *testing.T) {
		core := NewMockCoreLLM()
		core.Error = errTransient

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		llm := RetryMiddleware(5, time.Second, time.Second)(core)
		_, err := llm.DoRequest(ctx, ports.CompletionRequest{Prompt: "p"})

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, core.Calls())
	})
}

func TestRetryMiddleware_DelayBounds(t *testing.T) {
	r := &retryLLM{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}
	for attempt := range 40 {
		d := r.calculateDelay(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, time.Second)
	}
	first := r.calculateDelay(0)
	assert.GreaterOrEqual(t, first, 75*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)
}

func TestTimeoutMiddleware(t *testing.T) {
	core := NewMockCoreLLM()
	core.ResponseDelay = time.Second

	llm := TimeoutMiddleware(10 * time.Millisecond)(core)
	_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	core.ResponseDelay = 0
	_, err = llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.NoError(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	core := NewMockCoreLLM()
	llm := RateLimitMiddleware(rate.Limit(50), 1)(core)

	start := time.Now()
	for range 3 {
		_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
		require.NoError(t, err)
	}
	// One burst token, then two waits of 20ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 3, core.Calls())
}

func TestRateLimitMiddleware_Canceled(t *testing.T) {
	core := NewMockCoreLLM()
	llm := RateLimitMiddleware(rate.Limit(1), 1)(core)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := llm.DoRequest(ctx, ports.CompletionRequest{Prompt: "p"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, core.Calls())
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	fail := func() error { return errTransient }
	ok := func() error { return nil }

	require.Error(t, cb.Call(fail))
	assert.Equal(t, StateClosed, cb.GetState())
	require.Error(t, cb.Call(fail))
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	// A failed probe reopens the circuit.
	now = now.Add(time.Minute)
	require.Error(t, cb.Call(fail))
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Call(func() error { return errTransient }))
	now = now.Add(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_CancellationIsNotFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	require.ErrorIs(t, cb.Call(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerMiddleware_Metrics(t *testing.T) {
	core := NewMockCoreLLM()
	core.Error = errTransient
	metrics := &recordingBreakerMetrics{}

	llm := CircuitBreakerMiddlewareWithMetrics(1, time.Hour, metrics)(core)
	_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.ErrorIs(t, err, errTransient)
	_, err = llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrCircuitOpen)

	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, 1, metrics.trips)
	assert.Equal(t, []CircuitBreakerState{StateOpen, StateOpen}, metrics.states)
	assert.Equal(t, 1, core.Calls())
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()
	core := NewMockCoreLLM()

	llm := MetricsMiddleware(collector, "mock")(core)
	_, err := llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.NoError(t, err)

	core.Error = NewProviderError("mock", ErrorTypeRateLimit, 429, "", nil)
	_, err = llm.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "p", Model: "other"})
	require.Error(t, err)

	assert.Equal(t, 1.0, collector.counter(MetricRequests, "status", "success"))
	assert.Equal(t, 1.0, collector.counter(MetricRequests, "status", "rate_limit"))
	assert.Equal(t, 10.0, collector.counter(MetricTokens, "token_type", "input"))
	assert.Equal(t, 20.0, collector.counter(MetricTokens, "token_type", "output"))
	assert.Equal(t, 1.0, collector.counter(MetricRequests, "model", "other"))
	assert.Len(t, collector.histograms[MetricRequestLatency], 2)
}

func TestRequestStatus(t *testing.T) {
	assert.Equal(t, "success", requestStatus(nil))
	assert.Equal(t, "circuit_open", requestStatus(ErrCircuitOpen))
	assert.Equal(t, "timeout", requestStatus(context.DeadlineExceeded))
	assert.Equal(t, "server_error", requestStatus(errTransient))
	assert.Equal(t, "error", requestStatus(errors.New("x")))
}

type recordingBreakerMetrics struct {
	states    []CircuitBreakerState
	trips     int
	successes int
	failures  int
}

func (m *recordingBreakerMetrics) RecordState(s CircuitBreakerState) { m.states = append(m.states, s) }
func (m *recordingBreakerMetrics) RecordTrip()                        { m.trips++ }
func (m *recordingBreakerMetrics) RecordSuccess()                     { m.successes++ }
func (m *recordingBreakerMetrics) RecordFailure()                     { m.failures++ }

type sample struct {
	value  float64
	labels map[string]string
}

type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string][]sample
	histograms map[string][]sample
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string][]sample{}, histograms: map[string][]sample{}}
}

func (c *recordingCollector) RecordLatency(name string, d time.Duration, labels map[string]string) {
	c.RecordHistogram(name, d.Seconds(), labels)
}

func (c *recordingCollector) RecordCounter(name string, v float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] = append(c.counters[name], sample{v, labels})
}

func (c *recordingCollector) RecordGauge(string, float64, map[string]string) {}

func (c *recordingCollector) RecordHistogram(name string, v float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms[name] = append(c.histograms[name], sample{v, labels})
}

// counter sums the samples of name whose label key equals value.
func (c *recordingCollector) counter(name, key, value string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, s := range c.counters[name] {
		if s.labels[key] == value {
			total += s.value
		}
	}
	return total
}
