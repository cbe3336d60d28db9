package match

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// =============================================================================
// STRATEGY - Pluggable fuzzy matching
// =============================================================================

// Strategy decides whether a candidate name is a plausible fuzzy match for a
// query. Implementations are pure and case-insensitive. Exact matching is
// NOT a Strategy concern; the Resolver handles it before falling back here.
type Strategy interface {
	Matches(name, query string) bool
}

// Substring matches when either string contains the other. "Acme" finds
// "Acme Corp" and "corp" finds "Acme Corp".
func Substring() Strategy { return substringStrategy{} }

type substringStrategy struct{}

func (substringStrategy) Matches(name, query string) bool {
	return containsEitherWay(normalize(name), normalize(query))
}

// EditDistance matches on substring containment OR a bounded Levenshtein
// distance, tolerating small typos ("webiste redesign"). Distance is only
// consulted when the query is long enough that maxDistance edits cannot
// rewrite most of it.
func EditDistance(maxDistance int) Strategy {
	return editDistanceStrategy{max: maxDistance}
}

type editDistanceStrategy struct {
	max int
}

func (s editDistanceStrategy) Matches(name, query string) bool {
	n, q := normalize(name), normalize(query)
	if containsEitherWay(n, q) {
		return true
	}
	if len([]rune(q)) <= s.max {
		return false
	}
	return levenshtein.ComputeDistance(n, q) <= s.max
}

func containsEitherWay(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
