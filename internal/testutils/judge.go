package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Comparison is one call received by a test judge.
type Comparison struct {
	A, B string
}

// ScriptedJudge returns canned responses in order. When the script runs
// out it repeats the last entry. Errors are returned in place of a
// response when the entry's Err is set.
type ScriptedJudge struct {
	mu      sync.Mutex
	script  []ScriptEntry
	calls   []Comparison
	nextIdx int
}

// ScriptEntry is one scripted reply.
type ScriptEntry struct {
	Response string
	Err      error
	Panic    any
}

var _ ports.Judge = (*ScriptedJudge)(nil)

// NewScriptedJudge returns a judge replying with responses in order.
func NewScriptedJudge(responses ...string) *ScriptedJudge {
	entries := make([]ScriptEntry, len(responses))
	for i, r := range responses {
		entries[i] = ScriptEntry{Response: r}
	}
	return &ScriptedJudge{script: entries}
}

// NewScriptedJudgeEntries returns a judge replying with entries in order.
func NewScriptedJudgeEntries(entries ...ScriptEntry) *ScriptedJudge {
	return &ScriptedJudge{script: entries}
}

// Compare implements ports.Judge.
func (j *ScriptedJudge) Compare(_ context.Context, a, b string) (string, error) {
	j.mu.Lock()
	j.calls = append(j.calls, Comparison{A: a, B: b})
	if len(j.script) == 0 {
		j.mu.Unlock()
		return "", nil
	}
	entry := j.script[min(j.nextIdx, len(j.script)-1)]
	j.nextIdx++
	j.mu.Unlock()

	if entry.Panic != nil {
		panic(entry.Panic)
	}
	return entry.Response, entry.Err
}

// Calls returns every comparison received.
func (j *ScriptedJudge) Calls() []Comparison {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Comparison, len(j.calls))
	copy(out, j.calls)
	return out
}

// PreferenceJudge declares a winner from a fixed ranking of candidate
// texts: the text with the lower index in Order wins. Unknown texts lose to
// known ones; two unknown texts produce an unparseable reply.
type PreferenceJudge struct {
	rank map[string]int
}

var _ ports.Judge = (*PreferenceJudge)(nil)

// NewPreferenceJudge builds a judge that prefers texts earlier in order.
func NewPreferenceJudge(order ...string) *PreferenceJudge {
	rank := make(map[string]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	return &PreferenceJudge{rank: rank}
}

// Compare implements ports.Judge.
func (j *PreferenceJudge) Compare(_ context.Context, a, b string) (string, error) {
	ra, okA := j.rank[a]
	rb, okB := j.rank[b]
	switch {
	case !okA && !okB:
		return "I cannot decide.", nil
	case !okB || (okA && ra < rb):
		return fmt.Sprintf(`{"winner": "a", "reasoning": %q}`, a+" is preferred"), nil
	default:
		return fmt.Sprintf(`{"winner": "b", "reasoning": %q}`, b+" is preferred"), nil
	}
}
