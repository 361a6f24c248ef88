package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// winnerPattern finds a "winner" key followed by a or b, tolerating
// missing or single quotes, '=' in place of ':', and any letter case.
var winnerPattern = regexp.MustCompile(`(?i)["']?winner["']?\s*[:=]\s*["']?([ab])\b`)

// FindWinner scans raw text for a winner declaration and returns "a" or
// "b". It is the fallback for responses whose JSON could not be decoded or
// whose winner field is malformed.
func FindWinner(raw string) (string, bool) {
	m := winnerPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// NormalizeKey folds case and maps spaces and hyphens to underscores, so
// "Dimension Scores" and "dimension-scores" both become "dimension_scores".
func NormalizeKey(k string) string {
	k = cases.Fold().String(strings.TrimSpace(k))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return '_'
		}
		return r
	}, k)
}

// maxKeyDistance returns the edit distance tolerated for a key. Short keys
// such as "h_a" and "h_b" differ by one edit, so they must match exactly.
func maxKeyDistance(key string) int {
	switch {
	case len(key) >= 6:
		return 2
	case len(key) > 3:
		return 1
	}
	return 0
}

// Lookup returns m[key], tolerating the key variations models produce:
// different case, spaces or hyphens instead of underscores, and small
// misspellings. An exact key always wins. Among fuzzy matches the closest
// one is used, ties broken by key order.
func Lookup(m map[string]any, key string) (any, bool) {
	if v, ok := LookupNormalized(m, key); ok {
		return v, true
	}

	want := NormalizeKey(key)
	keys := sortedKeys(m)
	best, bestDist, found := "", maxKeyDistance(want)+1, false
	for _, k := range keys {
		d := levenshtein.ComputeDistance(NormalizeKey(k), want)
		if d < bestDist {
			best, bestDist, found = k, d, true
		}
	}
	if !found {
		return nil, false
	}
	return m[best], true
}

// LookupNormalized returns m[key] when m holds key exactly or up to case,
// spacing and hyphens. Misspelled keys do not match. Fields whose value
// decides a match use this form, since a near miss such as "winter" or
// "runner" is a different field, not a typo of "winner".
func LookupNormalized(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	want := NormalizeKey(key)
	for _, k := range sortedKeys(m) {
		if NormalizeKey(k) == want {
			return m[k], true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// LookupMap is Lookup for values that must themselves be objects.
func LookupMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := Lookup(m, key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}
