package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Budget metric names.
const (
	MetricBudgetCallsUsed     = "judge_budget_calls_used"
	MetricBudgetTokensUsed    = "judge_budget_tokens_used"
	MetricBudgetRemaining     = "judge_budget_remaining"
	MetricBudgetExceeded      = "judge_budget_exceeded_total"
	MetricBudgetJudgeDuration = "judge_budget_call"
)

// Usage share at which span events are emitted.
const (
	warningThreshold  = 0.8
	criticalThreshold = 0.9
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver traces each budgeted judge call and reports usage to
// a metrics collector. Span state travels in the context, so one observer
// serves concurrent calls.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
	name    string
	tracer  trace.Tracer
}

// NewOTelBudgetObserver creates an observer labelled with name. A nil
// collector disables metrics.
func NewOTelBudgetObserver(metrics ports.MetricsCollector, name string) *OTelBudgetObserver {
	return NewOTelBudgetObserverWithTracer(metrics, name, otel.Tracer(tracerName))
}

// NewOTelBudgetObserverWithTracer is NewOTelBudgetObserver with an
// explicit tracer.
func NewOTelBudgetObserverWithTracer(metrics ports.MetricsCollector, name string, tracer trace.Tracer) *OTelBudgetObserver {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &OTelBudgetObserver{metrics: metrics, name: name, tracer: tracer}
}

// PreCheck implements BudgetObserver. It starts a span and records
// threshold warnings.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context {
	ctx, span := o.tracer.Start(ctx, "BudgetJudge.Compare")
	o.addSpanAttributes(span, usage, budget)
	o.checkBudgetThresholds(span, usage, budget)
	return ctx
}

// PostCheck implements BudgetObserver. It ends the span started by
// PreCheck, or records a refusal when no call was made.
func (o *OTelBudgetObserver) PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error) {
	labels := o.labels(budget)

	var exceeded *BudgetExceededError
	if errors.As(err, &exceeded) {
		withLimit := map[string]string{"judge": o.name, "limit_type": exceeded.LimitType}
		o.metrics.RecordCounter(MetricBudgetExceeded, 1, withLimit)
		trace.SpanFromContext(ctx).AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", exceeded.LimitType),
			attribute.Int64("limit_value", exceeded.Limit),
			attribute.Int64("used_value", exceeded.Used),
		))
		return
	}

	span := trace.SpanFromContext(ctx)
	defer span.End()

	o.metrics.RecordLatency(MetricBudgetJudgeDuration, elapsed, labels)
	o.metrics.RecordGauge(MetricBudgetCallsUsed, float64(usage.Calls), labels)
	o.metrics.RecordGauge(MetricBudgetTokensUsed, float64(usage.Tokens), labels)
	if budget.MaxCalls > 0 {
		o.metrics.RecordGauge(MetricBudgetRemaining, float64(budget.MaxCalls-usage.Calls), withResource(labels, "calls"))
	}
	if budget.MaxTokens > 0 {
		o.metrics.RecordGauge(MetricBudgetRemaining, float64(budget.MaxTokens-usage.Tokens), withResource(labels, "tokens"))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (o *OTelBudgetObserver) addSpanAttributes(span trace.Span, usage Usage, budget Budget) {
	span.SetAttributes(
		attribute.String("budget.judge", o.name),
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.calls_made", usage.Calls),
	)
	if budget.MaxTokens > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-usage.Tokens),
		)
	}
	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-usage.Calls),
		)
	}
}

// checkBudgetThresholds adds a span event when usage crosses the warning
// or critical share of a limit.
func (o *OTelBudgetObserver) checkBudgetThresholds(span trace.Span, usage Usage, budget Budget) {
	check := func(resource string, used, limit int64) {
		if limit <= 0 {
			return
		}
		share := float64(used) / float64(limit)
		event := ""
		switch {
		case share >= criticalThreshold:
			event = "budget.threshold.critical"
		case share >= warningThreshold:
			event = "budget.threshold.warning"
		default:
			return
		}
		span.AddEvent(event, trace.WithAttributes(
			attribute.String("resource_type", resource),
			attribute.Float64("usage_percentage", share*100),
		))
	}
	check("tokens", usage.Tokens, budget.MaxTokens)
	check("calls", usage.Calls, budget.MaxCalls)
}

func (o *OTelBudgetObserver) labels(budget Budget) map[string]string {
	return map[string]string{
		"judge":        o.name,
		"budget_limit": budgetLimitLabel(budget),
	}
}

func budgetLimitLabel(budget Budget) string {
	switch {
	case budget.MaxTokens > 0 && budget.MaxCalls > 0:
		return "tokens_and_calls"
	case budget.MaxTokens > 0:
		return "tokens_only"
	case budget.MaxCalls > 0:
		return "calls_only"
	}
	return "unlimited"
}

func withResource(labels map[string]string, resource string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["resource"] = resource
	return out
}
