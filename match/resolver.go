/*
Package match resolves free-text entity references against candidate lists.

PURPOSE:
  A conversational request says "bill Acme for the website project". Before
  anything is staged, "Acme" and "website" must be pinned to concrete records.
  This package does that resolution with a strict no-guessing policy:

  - Exactly one case-insensitive exact name match wins outright.
  - Two or more exact matches (duplicate names) is AMBIGUOUS: all of them are
    returned as similar matches and none is picked. Silently choosing "the
    first" duplicate is the failure mode this rule exists to prevent.
  - Zero exact matches falls back to the fuzzy Strategy; every hit is
    returned, in source order, with no ranking or scoring.

  Resolution never auto-creates and never auto-picks. Ambiguity is always
  escalated to the caller, who disambiguates with the user or requests
  creation of a new entity.

STRATEGY:
  Fuzzy rules differ per entity kind (project names carry more lexical
  variation than client names), so the fuzzy step sits behind the Strategy
  interface. Thresholds are tuned in one place instead of per call site.

SEE ALSO:
  - staging/validation.go: drives resolution across a draft's fields
*/
package match

import "strings"

// =============================================================================
// ENTITY - The minimal shape resolution needs
// =============================================================================

// Entity is a named record from the store. SecondaryName is optional (a
// client's company name, a project's code) and participates in matching the
// same way PrimaryName does.
type Entity struct {
	ID            string
	PrimaryName   string
	SecondaryName string
}

func (e Entity) names() []string {
	if e.SecondaryName == "" {
		return []string{e.PrimaryName}
	}
	return []string{e.PrimaryName, e.SecondaryName}
}

// =============================================================================
// RESULT
// =============================================================================

// Result holds the outcome of a resolution. Exact and a non-empty Similar
// are mutually exclusive: an unambiguous exact match short-circuits fuzzy
// matching, and duplicate exact matches degrade to Similar.
type Result struct {
	Exact   *Entity
	Similar []Entity
}

// IsUnique reports whether the query resolved to exactly one entity.
func (r Result) IsUnique() bool { return r.Exact != nil }

// IsAmbiguous reports whether there are candidates but no unique winner.
func (r Result) IsAmbiguous() bool { return r.Exact == nil && len(r.Similar) > 0 }

// IsEmpty reports whether nothing matched at all.
func (r Result) IsEmpty() bool { return r.Exact == nil && len(r.Similar) == 0 }

// CandidateNames returns the primary names of the similar matches, for
// building "did you mean ..." messages.
func (r Result) CandidateNames() []string {
	names := make([]string, 0, len(r.Similar))
	for _, e := range r.Similar {
		names = append(names, e.PrimaryName)
	}
	return names
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver matches a text reference against a candidate list using the
// configured fuzzy Strategy for the non-exact fallback.
type Resolver struct {
	Strategy Strategy
}

// NewResolver returns a resolver with substring-containment fuzzy matching,
// the right default for clients and categories.
func NewResolver() *Resolver {
	return &Resolver{Strategy: Substring()}
}

// NewLenientResolver returns a resolver that also tolerates small typos,
// for entity kinds with expected lexical variation (projects).
func NewLenientResolver() *Resolver {
	return &Resolver{Strategy: EditDistance(3)}
}

// Resolve matches query against candidates. See the package documentation
// for the exact/ambiguous/fuzzy policy.
func (r *Resolver) Resolve(candidates []Entity, query string) Result {
	q := normalize(query)
	if q == "" {
		return Result{}
	}

	var exact []Entity
	for _, c := range candidates {
		for _, name := range c.names() {
			if normalize(name) == q {
				exact = append(exact, c)
				break
			}
		}
	}

	switch len(exact) {
	case 1:
		e := exact[0]
		return Result{Exact: &e}
	default:
		if len(exact) > 1 {
			// Duplicate names: ambiguous, never an arbitrary pick.
			return Result{Similar: exact}
		}
	}

	var similar []Entity
	for _, c := range candidates {
		for _, name := range c.names() {
			if r.Strategy.Matches(name, query) {
				similar = append(similar, c)
				break
			}
		}
	}
	return Result{Similar: similar}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
