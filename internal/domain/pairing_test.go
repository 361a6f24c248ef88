package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "random", want: StrategyRandom},
		{in: "round_robin", want: StrategyRoundRobin},
		{in: " Swiss ", want: StrategySwiss},
		{in: "knockout", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRandomPairs(t *testing.T) {
	t.Run("default round count is 3n", func(t *testing.T) {
		pairs := RandomPairs(5, 0, NewRand(1))
		assert.Len(t, pairs, 15)
	})

	t.Run("explicit round count", func(t *testing.T) {
		pairs := RandomPairs(5, 4, NewRand(1))
		assert.Len(t, pairs, 4)
	})

	t.Run("fewer than two candidates", func(t *testing.T) {
		assert.Empty(t, RandomPairs(0, 0, NewRand(1)))
		assert.Empty(t, RandomPairs(1, 10, NewRand(1)))
	})

	t.Run("same seed same schedule", func(t *testing.T) {
		assert.Equal(t, RandomPairs(7, 0, NewRand(42)), RandomPairs(7, 0, NewRand(42)))
	})

	t.Run("two candidates always pair with each other", func(t *testing.T) {
		for _, p := range RandomPairs(2, 20, NewRand(3)) {
			assert.ElementsMatch(t, []int{0, 1}, []int{p.A, p.B})
		}
	})
}

func TestRandomPairs_DistinctInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 40).Draw(rt, "n")
		seed := rapid.Uint64().Draw(rt, "seed")

		pairs := RandomPairs(n, 0, NewRand(seed))
		if len(pairs) != 3*n {
			rt.Fatalf("got %d pairs, want %d", len(pairs), 3*n)
		}
		for _, p := range pairs {
			if p.A == p.B {
				rt.Fatalf("self pair %v", p)
			}
			if p.A < 0 || p.A >= n || p.B < 0 || p.B >= n {
				rt.Fatalf("pair %v out of range for n=%d", p, n)
			}
		}
	})
}

func TestRoundRobinPairs(t *testing.T) {
	assert.Equal(t, []Pair{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, RoundRobinPairs(4))
	assert.Empty(t, RoundRobinPairs(1))

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		pairs := RoundRobinPairs(n)
		want := 0
		if n >= 2 {
			want = n * (n - 1) / 2
		}
		if len(pairs) != want {
			rt.Fatalf("n=%d: got %d pairs, want %d", n, len(pairs), want)
		}
		seen := make(map[Pair]bool, len(pairs))
		for _, p := range pairs {
			if p.A >= p.B || seen[p] {
				rt.Fatalf("bad or repeated pair %v", p)
			}
			seen[p] = true
		}
	})
}

func TestSwissPairs(t *testing.T) {
	t.Run("pairs adjacent by rating", func(t *testing.T) {
		got := SwissPairs([]int{1200, 1300, 1250, 1100})
		assert.Equal(t, []Pair{{1, 2}, {0, 3}}, got)
	})

	t.Run("odd count leaves the lowest out", func(t *testing.T) {
		got := SwissPairs([]int{1000, 1300, 1250, 1100, 1200})
		assert.Equal(t, []Pair{{1, 2}, {4, 3}}, got)
	})

	t.Run("ties keep input order", func(t *testing.T) {
		got := SwissPairs([]int{1200, 1200, 1200, 1200})
		assert.Equal(t, []Pair{{0, 1}, {2, 3}}, got)
	})

	t.Run("each candidate at most once", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			ratings := rapid.SliceOfN(rapid.IntRange(800, 1600), 0, 25).Draw(rt, "ratings")
			pairs := SwissPairs(ratings)
			if len(pairs) != len(ratings)/2 {
				rt.Fatalf("got %d pairs for %d candidates", len(pairs), len(ratings))
			}
			seen := make(map[int]bool)
			for _, p := range pairs {
				if seen[p.A] || seen[p.B] {
					rt.Fatalf("index repeated in %v", pairs)
				}
				seen[p.A], seen[p.B] = true, true
			}
		})
	})
}

func TestSwissRounds(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5}
	for n, want := range cases {
		assert.Equal(t, want, SwissRounds(n), "n=%d", n)
	}
}

func TestGeneratePairs(t *testing.T) {
	assert.Len(t, GeneratePairs(StrategyRandom, 4, nil, NewRand(9)), 12)
	assert.Len(t, GeneratePairs(StrategyRoundRobin, 4, nil, nil), 6)
	assert.Equal(t, []Pair{{1, 0}}, GeneratePairs(StrategySwiss, 2, []int{1100, 1300}, nil))
	assert.Equal(t, []Pair{{0, 1}}, GeneratePairs(StrategySwiss, 2, nil, nil))
	// Odd count: the lowest-rated candidate sits out.
	assert.Equal(t, []Pair{{0, 1}, {2, 3}}, GeneratePairs(StrategySwiss, 5, []int{500, 400, 300, 200, 100}, nil))
	assert.Empty(t, GeneratePairs("elimination", 4, nil, nil))
}
