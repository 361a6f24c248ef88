package domain

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"slices"
	"strings"
)

// Strategy selects how match pairs are generated.
type Strategy string

// Supported pairing strategies.
const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round_robin"
	StrategySwiss      Strategy = "swiss"
)

// Strategies lists the supported strategies.
var Strategies = []Strategy{StrategyRandom, StrategyRoundRobin, StrategySwiss}

// ParseStrategy validates a strategy name. Matching ignores case and
// surrounding whitespace.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Strategies, st) {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q (want one of random, round_robin, swiss)", ErrUnknownStrategy, s)
}

// Pair is an ordered pair of candidate indices. A is shown to the judge first.
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NewRand returns a deterministic random source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomPairs draws rounds pairs of distinct indices uniformly from [0, n).
// rounds <= 0 selects 3n rounds. Fewer than two candidates yield no pairs.
// A nil rng uses an unseeded source.
func RandomPairs(n, rounds int, rng *rand.Rand) []Pair {
	if n < 2 {
		return []Pair{}
	}
	if rounds <= 0 {
		rounds = 3 * n
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pairs := make([]Pair, 0, rounds)
	for range rounds {
		a := rng.IntN(n)
		b := rng.IntN(n - 1)
		if b >= a {
			b++
		}
		pairs = append(pairs, Pair{A: a, B: b})
	}
	return pairs
}

// RoundRobinPairs returns every unordered pair (i, j) with i < j exactly
// once, in ascending lexicographic order.
func RoundRobinPairs(n int) []Pair {
	if n < 2 {
		return []Pair{}
	}
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{A: i, B: j})
		}
	}
	return pairs
}

// SwissPairs pairs adjacent candidates after a stable sort by rating,
// highest first. With an odd count the lowest-ranked candidate sits out.
func SwissPairs(ratings []int) []Pair {
	n := len(ratings)
	if n < 2 {
		return []Pair{}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return ratings[y] - ratings[x]
	})

	pairs := make([]Pair, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		pairs = append(pairs, Pair{A: order[i], B: order[i+1]})
	}
	return pairs
}

// SwissRounds returns ceil(log2 n), or 0 when n < 2.
func SwissRounds(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// GeneratePairs dispatches to the generator for strategy. ratings is used
// only by Swiss, which returns a single round. An unknown strategy yields
// an empty schedule.
func GeneratePairs(strategy Strategy, n int, ratings []int, rng *rand.Rand) []Pair {
	switch strategy {
	case StrategyRandom:
		return RandomPairs(n, 0, rng)
	case StrategyRoundRobin:
		return RoundRobinPairs(n)
	case StrategySwiss:
		if len(ratings) != n {
			ratings = defaultRatings(n)
		}
		return SwissPairs(ratings)
	default:
		return []Pair{}
	}
}

func defaultRatings(n int) []int {
	r := make([]int, max(n, 0))
	for i := range r {
		r[i] = DefaultRating
	}
	return r
}
