// Package ports defines the boundaries between the ranking engine and the
// services it depends on: the pairwise judge, LLM providers, and metrics.
package ports

import "context"

// Judge compares two candidate texts and returns its raw verdict.
//
// The verdict is expected, but not guaranteed, to contain a JSON object with
// either "winner": "a"|"b" or a "dimension_scores" object mapping each
// dimension to {"h_a": n, "h_b": n}. Callers must tolerate empty output,
// prose, fenced JSON and trailing commentary.
type Judge interface {
	Compare(ctx context.Context, textA, textB string) (string, error)
}

// JudgeFunc adapts a plain function to the Judge interface.
type JudgeFunc func(ctx context.Context, textA, textB string) (string, error)

// Compare calls f(ctx, textA, textB).
func (f JudgeFunc) Compare(ctx context.Context, textA, textB string) (string, error) {
	return f(ctx, textA, textB)
}
