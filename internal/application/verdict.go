package application

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/extract"
)

// Verdict keys recognised in judge output.
const (
	keyWinner          = "winner"
	keyDimensionScores = "dimension_scores"
	keyScoreA          = "h_a"
	keyScoreB          = "h_b"
)

// Verdict is a judge response reduced to what the rating engine needs.
type Verdict struct {
	// Winner is SideNone when no rule produced a winner.
	Winner domain.Side

	// Method is the rule that produced Winner.
	Method domain.WinnerMethod

	// Scores holds the decoded per-dimension scores, oriented with the
	// first candidate shown to the judge as side A.
	Scores domain.DimensionScores

	// Tie is true when dimension scores were the only signal and their
	// weighted totals were equal.
	Tie bool
}

// HasScores reports whether at least one dimension carried a usable pair.
func (v Verdict) HasScores() bool { return v.Scores.HasValid() }

// ResolveVerdict determines the winner of a match from the raw judge text
// and its extracted mapping. Rules are tried in order: an explicit winner
// field, a winner pattern in the raw text, and finally the weighted totals
// of the dimension scores. The winner field must be spelled correctly; a
// misspelled key only counts when the pattern finds it.
func ResolveVerdict(raw string, parsed map[string]any, weights domain.DimensionWeights) Verdict {
	v := Verdict{Scores: DecodeDimensionScores(parsed)}

	if side, ok := explicitWinner(parsed); ok {
		v.Winner, v.Method = side, domain.MethodExplicit
		return v
	}

	if w, ok := extract.FindWinner(raw); ok {
		v.Winner, v.Method = domain.Side(w), domain.MethodPattern
		return v
	}

	if !v.HasScores() {
		return v
	}

	a, b := v.Scores.Totals()
	sa, sb := weights.Score(a), weights.Score(b)
	switch {
	case sa > sb:
		v.Winner, v.Method = domain.SideA, domain.MethodDimensions
	case sb > sa:
		v.Winner, v.Method = domain.SideB, domain.MethodDimensions
	default:
		v.Tie = true
	}
	return v
}

func explicitWinner(parsed map[string]any) (domain.Side, bool) {
	raw, ok := extract.LookupNormalized(parsed, keyWinner)
	if !ok {
		return domain.SideNone, false
	}
	s, ok := raw.(string)
	if !ok {
		return domain.SideNone, false
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`)) {
	case "a":
		return domain.SideA, true
	case "b":
		return domain.SideB, true
	}
	return domain.SideNone, false
}

// DecodeDimensionScores reads a "dimension_scores" object of the form
// {<dimension>: {"h_a": n, "h_b": n}}. Dimensions that are missing are
// omitted; dimensions present with a missing or non-numeric score are kept
// with Valid set to false.
func DecodeDimensionScores(parsed map[string]any) domain.DimensionScores {
	scores := domain.DimensionScores{}
	block, ok := extract.LookupMap(parsed, keyDimensionScores)
	if !ok {
		return scores
	}

	for _, d := range domain.AllDimensions {
		entry, ok := extract.LookupMap(block, string(d))
		if !ok {
			continue
		}
		a, okA := scoreValue(entry, keyScoreA)
		b, okB := scoreValue(entry, keyScoreB)
		scores[d] = domain.ScorePair{A: a, B: b, Valid: okA && okB}
	}
	return scores
}

func scoreValue(entry map[string]any, key string) (float64, bool) {
	v, ok := extract.Lookup(entry, key)
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

// toNumber accepts the numeric types a JSON decoder or a test may produce.
// Booleans and strings are rejected.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
