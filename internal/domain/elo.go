package domain

import (
	"math"

	"go.uber.org/zap"
)

// DefaultKFactor is the maximum rating change a single match can produce.
const DefaultKFactor = 32

// ExpectedScore returns the probability that a player rated rating beats a
// player rated opponentRating under the Elo model.
func ExpectedScore(rating, opponentRating int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponentRating-rating)/400.0))
}

// UpdateElo returns the new rating after one match. The rating change is
// truncated toward zero, so a win never lowers a rating and a loss never
// raises it. A non-positive kFactor leaves the rating unchanged.
func UpdateElo(rating, opponentRating int, won bool, kFactor int) int {
	if kFactor <= 0 {
		return rating
	}
	actual := 0.0
	if won {
		actual = 1.0
	}
	delta := float64(kFactor) * (actual - ExpectedScore(rating, opponentRating))
	return rating + int(delta)
}

// ScorePair is one dimension's score for both sides of a match.
// Valid is false when either score was missing or not a finite number.
type ScorePair struct {
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Valid bool    `json:"valid"`
}

// DimensionScores holds a ScorePair per dimension as reported by a judge.
type DimensionScores map[Dimension]ScorePair

// Totals returns the per-side score maps for the valid pairs.
func (s DimensionScores) Totals() (a, b map[Dimension]float64) {
	a = make(map[Dimension]float64, len(s))
	b = make(map[Dimension]float64, len(s))
	for d, p := range s {
		if !p.Valid || !d.IsValid() {
			continue
		}
		a[d] = p.A
		b[d] = p.B
	}
	return a, b
}

// HasValid reports whether at least one known dimension carries a valid pair.
func (s DimensionScores) HasValid() bool {
	for d, p := range s {
		if p.Valid && d.IsValid() {
			return true
		}
	}
	return false
}

// RatingUpdater applies scalar and per-dimension Elo updates to candidates.
// It holds no per-match state and is safe for concurrent use.
type RatingUpdater struct {
	kFactor int
	weights DimensionWeights
	logger  *zap.Logger
}

// NewRatingUpdater builds a RatingUpdater. A zero weights value selects
// DefaultDimensionWeights and a nil logger disables logging.
func NewRatingUpdater(kFactor int, weights DimensionWeights, logger *zap.Logger) *RatingUpdater {
	if logger == nil {
		logger = zap.NewNop()
	}
	if weights.IsZero() {
		weights = DefaultDimensionWeights()
	}
	return &RatingUpdater{kFactor: kFactor, weights: weights, logger: logger}
}

// KFactor returns the configured K factor.
func (u *RatingUpdater) KFactor() int { return u.kFactor }

// Weights returns the dimension weights used for composites.
func (u *RatingUpdater) Weights() DimensionWeights { return u.weights }

// Update returns the new scalar rating. A non-positive K factor is treated
// as an input error: it is logged and the rating is returned unchanged.
func (u *RatingUpdater) Update(rating, opponentRating int, won bool) int {
	if u.kFactor <= 0 {
		u.logger.Warn("ignoring rating update with non-positive k factor",
			zap.Int("k_factor", u.kFactor),
			zap.Int("rating", rating),
		)
		return rating
	}
	return UpdateElo(rating, opponentRating, won, u.kFactor)
}

// Exchange applies a decided match to both candidates. Both new ratings are
// computed from the ratings held before the match.
func (u *RatingUpdater) Exchange(winner, loser *Candidate) {
	wr, lr := winner.Rating, loser.Rating
	winner.Rating = u.Update(wr, lr, true)
	loser.Rating = u.Update(lr, wr, false)
}

// UpdateDimensions updates self against opp dimension by dimension, using
// self's scores from the A side of each pair. Dimensions with an invalid
// pair or a tied score are skipped. The composite rating of self is always
// recomputed, even when no dimension changed. opp is not modified.
func (u *RatingUpdater) UpdateDimensions(self, opp *Candidate, scores DimensionScores) {
	self.ensureDimensions()
	oppRatings := opp.DimensionRatings
	if oppRatings == nil {
		oppRatings = map[Dimension]int{}
	}
	u.applyDimensions(self, oppRatings, opp.Rating, scores, false)
	self.Rating = u.weights.Composite(self.DimensionRatings)
}

// ExchangeDimensions applies a dimensional verdict to both sides. scores
// are oriented with a as side A. Each side is updated against the other's
// dimension ratings as they were before the match, then both composites
// are recomputed.
func (u *RatingUpdater) ExchangeDimensions(a, b *Candidate, scores DimensionScores) {
	a.ensureDimensions()
	b.ensureDimensions()

	snapA := copyRatings(a.DimensionRatings)
	snapB := copyRatings(b.DimensionRatings)

	u.applyDimensions(a, snapB, b.Rating, scores, false)
	u.applyDimensions(b, snapA, a.Rating, scores, true)

	a.Rating = u.weights.Composite(a.DimensionRatings)
	b.Rating = u.weights.Composite(b.DimensionRatings)
}

func (u *RatingUpdater) applyDimensions(
	self *Candidate,
	oppRatings map[Dimension]int,
	oppFallback int,
	scores DimensionScores,
	flipped bool,
) {
	for _, d := range AllDimensions {
		pair, ok := scores[d]
		if !ok || !pair.Valid {
			continue
		}
		mine, theirs := pair.A, pair.B
		if flipped {
			mine, theirs = theirs, mine
		}
		if mine == theirs {
			continue
		}
		opp, ok := oppRatings[d]
		if !ok {
			opp = oppFallback
		}
		self.DimensionRatings[d] = u.Update(self.DimensionRatings[d], opp, mine > theirs)
	}
}

func copyRatings(in map[Dimension]int) map[Dimension]int {
	out := make(map[Dimension]int, len(in))
	for d, r := range in {
		out[d] = r
	}
	return out
}
