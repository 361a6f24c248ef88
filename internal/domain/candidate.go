// Package domain holds the rating arithmetic, pairing schedules, and value
// types of the tournament ranking engine. Nothing in this package performs
// I/O; every function is deterministic given its inputs and injected
// randomness.
package domain

import "math"

// DefaultRating is the rating every new candidate and every dimension starts at.
const DefaultRating = 1200

// Dimension names one axis of multi-dimensional scoring.
type Dimension string

// The four scoring dimensions used by dimensional judging.
const (
	DimensionScientificMerit Dimension = "scientific_merit"
	DimensionPracticalValue  Dimension = "practical_value"
	DimensionImpact          Dimension = "impact"
	DimensionCommunication   Dimension = "communication"
)

// AllDimensions lists the dimensions in their canonical order.
// Iteration over dimensions always uses this order so results are
// reproducible.
var AllDimensions = []Dimension{
	DimensionScientificMerit,
	DimensionPracticalValue,
	DimensionImpact,
	DimensionCommunication,
}

// IsValid reports whether d is one of the four known dimensions.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionScientificMerit, DimensionPracticalValue, DimensionImpact, DimensionCommunication:
		return true
	}
	return false
}

// ratingKey maps a dimension onto the key used by CandidateMap.
func (d Dimension) ratingKey() string {
	switch d {
	case DimensionScientificMerit:
		return "elo_scientific"
	case DimensionPracticalValue:
		return "elo_practical"
	case DimensionImpact:
		return "elo_impact"
	case DimensionCommunication:
		return "elo_communication"
	}
	return "elo_" + string(d)
}

// Candidate is one competitor in a tournament. It is identified by its
// exact text. Rating is the composite rating used for the final ordering.
type Candidate struct {
	// Text is the candidate content shown to the judge.
	Text string `json:"text" yaml:"text"`

	// Rating is the scalar Elo rating, or the weighted composite of
	// DimensionRatings once a dimensional update has been applied. Zero is
	// a rating like any other; only the constructors substitute
	// DefaultRating for it.
	Rating int `json:"elo_rating" yaml:"rating"`

	// DimensionRatings holds one rating per Dimension.
	DimensionRatings map[Dimension]int `json:"dimension_ratings,omitempty" yaml:"dimension_ratings,omitempty"`

	// WinCount is the number of decided matches this candidate won.
	WinCount int `json:"win_count" yaml:"win_count"`

	// LossCount is the number of decided matches this candidate lost.
	LossCount int `json:"loss_count" yaml:"loss_count"`
}

// NewCandidate returns a candidate with default ratings and no matches.
func NewCandidate(text string) Candidate {
	c := Candidate{Text: text, Rating: DefaultRating}
	c.ensureDimensions()
	return c
}

// NewRatedCandidate returns a candidate starting at rating, with every
// dimension seeded from it. A zero rating selects DefaultRating.
func NewRatedCandidate(text string, rating int) Candidate {
	if rating == 0 {
		rating = DefaultRating
	}
	c := Candidate{Text: text, Rating: rating}
	c.ensureDimensions()
	return c
}

// ensureDimensions seeds any missing dimension rating from the scalar
// rating, so the first composite recomputation does not jump away from it.
func (c *Candidate) ensureDimensions() {
	if c.DimensionRatings == nil {
		c.DimensionRatings = make(map[Dimension]int, len(AllDimensions))
	}
	for _, d := range AllDimensions {
		if _, ok := c.DimensionRatings[d]; !ok {
			c.DimensionRatings[d] = c.Rating
		}
	}
}

// Clone returns a deep copy of c with every dimension rating populated.
// The scalar rating is copied as is.
func (c Candidate) Clone() Candidate {
	out := c
	out.DimensionRatings = make(map[Dimension]int, len(AllDimensions))
	for d, r := range c.DimensionRatings {
		out.DimensionRatings[d] = r
	}
	out.ensureDimensions()
	return out
}

// TotalMatches returns the number of decided matches the candidate played.
func (c Candidate) TotalMatches() int { return c.WinCount + c.LossCount }

// WinRate returns the win percentage rounded to two decimals. A candidate
// with no decided matches has a win rate of 0.
func (c Candidate) WinRate() float64 {
	total := max(c.TotalMatches(), 1)
	return math.Round(float64(c.WinCount)/float64(total)*100*100) / 100
}

// CandidateMap serializes c into a flat map suitable for JSON or YAML
// output. It does not modify c.
func CandidateMap(c Candidate) map[string]any {
	m := map[string]any{
		"text":          c.Text,
		"elo_rating":    c.Rating,
		"win_count":     c.WinCount,
		"loss_count":    c.LossCount,
		"total_matches": c.TotalMatches(),
		"win_rate":      c.WinRate(),
	}
	for _, d := range AllDimensions {
		r, ok := c.DimensionRatings[d]
		if !ok {
			r = c.Rating
		}
		m[d.ratingKey()] = r
	}
	return m
}
