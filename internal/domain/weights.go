package domain

import (
	"fmt"
	"math"
	"slices"
)

// weightSumTolerance is how far the weight total may drift from 1.0.
const weightSumTolerance = 0.01

// DimensionWeights assigns a non-negative weight to each of the four
// dimensions. Values are validated once at construction and cannot be
// changed afterwards; the zero value is not usable, build one with
// NewDimensionWeights or DefaultDimensionWeights.
type DimensionWeights struct {
	w map[Dimension]float64
}

// DefaultDimensionWeights returns the standard weighting:
// scientific merit 0.25, practical value 0.35, impact 0.25, communication 0.15.
func DefaultDimensionWeights() DimensionWeights {
	return DimensionWeights{w: map[Dimension]float64{
		DimensionScientificMerit: 0.25,
		DimensionPracticalValue:  0.35,
		DimensionImpact:          0.25,
		DimensionCommunication:   0.15,
	}}
}

// NewDimensionWeights validates weights and returns an immutable copy.
// Every dimension must be present, no other keys are allowed, no weight
// may be negative, and the weights must sum to 1.0 within 0.01.
func NewDimensionWeights(weights map[Dimension]float64) (DimensionWeights, error) {
	verr := NewValidationError("DimensionWeights")

	for _, d := range AllDimensions {
		if _, ok := weights[d]; !ok {
			verr.AddErrorf("missing weight for dimension %q", d)
		}
	}

	unknown := make([]string, 0)
	for d := range weights {
		if !d.IsValid() {
			unknown = append(unknown, string(d))
		}
	}
	slices.Sort(unknown)
	for _, d := range unknown {
		verr.AddErrorf("unknown dimension %q", d)
	}

	var sum float64
	for _, d := range AllDimensions {
		v, ok := weights[d]
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			verr.AddErrorf("weight for %q must be finite", d)
			continue
		}
		if v < 0 {
			verr.AddErrorf("weight for %q must be non-negative, got %g", d, v)
		}
		sum += v
	}

	if !verr.HasErrors() && math.Abs(sum-1.0) > weightSumTolerance {
		verr.AddErrorf("weights must sum to 1.0 (±%.2f), got %.4f", weightSumTolerance, sum)
	}

	if verr.HasErrors() {
		return DimensionWeights{}, verr
	}

	out := make(map[Dimension]float64, len(AllDimensions))
	for _, d := range AllDimensions {
		out[d] = weights[d]
	}
	return DimensionWeights{w: out}, nil
}

// ParseDimensionWeights is NewDimensionWeights for string-keyed input, as
// it arrives from configuration files.
func ParseDimensionWeights(weights map[string]float64) (DimensionWeights, error) {
	typed := make(map[Dimension]float64, len(weights))
	for k, v := range weights {
		typed[Dimension(k)] = v
	}
	return NewDimensionWeights(typed)
}

// IsZero reports whether w was never initialized.
func (w DimensionWeights) IsZero() bool { return w.w == nil }

// Weight returns the weight for d, or 0 for an unknown dimension.
func (w DimensionWeights) Weight(d Dimension) float64 { return w.w[d] }

// Map returns a copy of the weights.
func (w DimensionWeights) Map() map[Dimension]float64 {
	out := make(map[Dimension]float64, len(w.w))
	for d, v := range w.w {
		out[d] = v
	}
	return out
}

// Score returns Σ values[d] × weight[d] over the four dimensions. Missing
// values contribute nothing.
func (w DimensionWeights) Score(values map[Dimension]float64) float64 {
	var total float64
	for _, d := range AllDimensions {
		total += values[d] * w.w[d]
	}
	return total
}

// Composite folds per-dimension ratings into one rating, rounded to the
// nearest integer.
func (w DimensionWeights) Composite(ratings map[Dimension]int) int {
	values := make(map[Dimension]float64, len(ratings))
	for d, r := range ratings {
		values[d] = float64(r)
	}
	return int(math.Round(w.Score(values)))
}

// String renders the weights in canonical dimension order.
func (w DimensionWeights) String() string {
	s := "{"
	for i, d := range AllDimensions {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%.2f", d, w.w[d])
	}
	return s + "}"
}
