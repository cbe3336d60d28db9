package match_test

import (
	"reflect"
	"testing"

	"github.com/warp/ledgerflow/match"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func entities(names ...string) []match.Entity {
	out := make([]match.Entity, 0, len(names))
	for i, n := range names {
		out = append(out, match.Entity{ID: string(rune('a' + i)), PrimaryName: n})
	}
	return out
}

// =============================================================================
// EXACT MATCHING
// =============================================================================

func TestResolve_SingleExactMatch_ShortCircuitsFuzzy(t *testing.T) {
	// GIVEN: "Acme" and "Acme Corp", which would both fuzzy-match "Acme"
	// WHEN: resolving "Acme"
	// THEN: the exact match wins and no similar matches are reported
	r := match.NewResolver()
	res := r.Resolve(entities("Acme", "Acme Corp"), "Acme")

	if !res.IsUnique() || res.Exact.PrimaryName != "Acme" {
		t.Fatalf("expected exact match on Acme, got %+v", res)
	}
	if len(res.Similar) != 0 {
		t.Errorf("exact match must suppress similar matches, got %v", res.CandidateNames())
	}
}

func TestResolve_ExactMatch_CaseInsensitive(t *testing.T) {
	r := match.NewResolver()
	res := r.Resolve(entities("Office Rent"), "office rent")
	if !res.IsUnique() {
		t.Fatalf("case-insensitive exact match failed: %+v", res)
	}
}

func TestResolve_SecondaryNameMatches(t *testing.T) {
	r := match.NewResolver()
	candidates := []match.Entity{{ID: "1", PrimaryName: "Acme", SecondaryName: "Acme Holdings GmbH"}}
	res := r.Resolve(candidates, "acme holdings gmbh")
	if !res.IsUnique() {
		t.Fatalf("secondary name should match exactly: %+v", res)
	}
}

func TestResolve_DuplicateExactNames_Ambiguous(t *testing.T) {
	// Two candidates with the same name: resolution must degrade to
	// similar matches rather than pick one arbitrarily.
	r := match.NewResolver()
	candidates := []match.Entity{
		{ID: "1", PrimaryName: "Consulting"},
		{ID: "2", PrimaryName: "consulting"},
	}
	res := r.Resolve(candidates, "Consulting")

	if res.Exact != nil {
		t.Fatalf("duplicate names must not produce an exact match, got %+v", res.Exact)
	}
	if !res.IsAmbiguous() || len(res.Similar) != 2 {
		t.Errorf("expected both duplicates as similar matches, got %+v", res)
	}
}

// =============================================================================
// FUZZY FALLBACK
// =============================================================================

func TestResolve_SubstringBothDirections(t *testing.T) {
	r := match.NewResolver()

	res := r.Resolve(entities("Acme Corporation"), "acme")
	if len(res.Similar) != 1 {
		t.Errorf("query inside name: %+v", res)
	}

	res = r.Resolve(entities("Acme"), "acme corporation berlin")
	if len(res.Similar) != 1 {
		t.Errorf("name inside query: %+v", res)
	}
}

func TestResolve_FuzzyHits_SourceOrderNoRanking(t *testing.T) {
	r := match.NewResolver()
	res := r.Resolve(entities("Rent Office", "Office Rent", "Office Supplies"), "office")
	want := []string{"Rent Office", "Office Rent", "Office Supplies"}
	if !reflect.DeepEqual(res.CandidateNames(), want) {
		t.Errorf("fuzzy hits reordered: got %v want %v", res.CandidateNames(), want)
	}
}

func TestResolve_EditDistance_ToleratesTypos(t *testing.T) {
	r := match.NewLenientResolver()
	res := r.Resolve(entities("Website Redesign"), "webiste redesign")
	if len(res.Similar) != 1 {
		t.Errorf("typo should fuzzy-match a project name: %+v", res)
	}
}

func TestResolve_EditDistance_ShortQueriesNotRewritten(t *testing.T) {
	// A 3-edit budget can turn "api" into almost anything; short queries must
	// rely on containment only.
	r := match.NewLenientResolver()
	res := r.Resolve(entities("Hub"), "api")
	if !res.IsEmpty() {
		t.Errorf("short query matched unrelated name: %+v", res)
	}
}

func TestResolve_NoMatches_Empty(t *testing.T) {
	r := match.NewResolver()
	res := r.Resolve(entities("Travel", "Meals"), "hardware")
	if !res.IsEmpty() {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestResolve_EmptyQuery_Empty(t *testing.T) {
	r := match.NewResolver()
	if res := r.Resolve(entities("Travel"), "   "); !res.IsEmpty() {
		t.Errorf("blank query resolved: %+v", res)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := match.NewResolver()
	c := entities("Acme", "Acme Corp", "Acme Holdings")
	a := r.Resolve(c, "acme corp")
	b := r.Resolve(c, "acme corp")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("resolution not deterministic: %+v vs %+v", a, b)
	}
}
