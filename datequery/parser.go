/*
Package datequery converts free-text date expressions into concrete date ranges.

PURPOSE:
  Conversational requests reference dates loosely ("yesterday", "last 7 days",
  "all of october", "nov 5 to nov 12"). This package turns those expressions
  into calendar date ranges anchored on a caller-supplied reference date.

CONTRACT:
  Parse never fails. When no pattern matches, it returns a Result with a nil
  Range plus the reference date and year, so the caller decides what to do
  next. This soft degrade is deliberate: an unrecognized date expression is
  not an error, it just means the request carries no date filter.

RECOGNIZED FORMS (in priority order):
  1. today / yesterday / tomorrow
  2. last N days
  3. this week / last week (Monday-start weeks)
  4. this month / last month / this year / last year
  5. month-name + day, either order, optional 4-digit year
  6. month-only ("october", "all of october"), optional year
  7. ISO YYYY-MM-DD
  8. slash/dash numeric (month-first; swapped when the first component > 12)
  9. compound "<A> to <B>" (recursion, depth-bounded)

  All results are calendar dates at UTC midnight; single-date matches set
  Start == End.

SEE ALSO:
  - staging/validation.go: consumes ranges when validating drafts
*/
package datequery

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// DateRange is an inclusive calendar date range. Start <= End always holds
// for ranges produced by Parse.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// Result is the outcome of parsing a date expression. Range is nil when no
// pattern matched; ReferenceDate and ReferenceYear are always populated so
// callers can still anchor follow-up interpretation.
type Result struct {
	Range         *DateRange
	Matched       string // name of the pattern that matched, empty if none
	ReferenceDate time.Time
	ReferenceYear int
}

// maxCompoundDepth bounds recursion for "<A> to <B>" expressions. Depth 1
// allows a single compound range; chained ranges ("a to b to c") degrade to
// no match instead of recursing.
const maxCompoundDepth = 1

// =============================================================================
// PARSER
// =============================================================================

var (
	lastNDaysRe = regexp.MustCompile(`^last\s+(\d{1,3})\s+days?$`)
	isoRe       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericRe   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?$`)
	monthDayRe  = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})(?:,?\s+(\d{4}))?$`)
	dayMonthRe  = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)(?:,?\s+(\d{4}))?$`)
	monthOnlyRe = regexp.MustCompile(`^(?:all\s+of\s+)?([a-z]+)(?:\s+(\d{4}))?$`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Parse interprets query relative to referenceDate. It never returns an
// error; see the package documentation for the soft-degrade contract.
func Parse(query string, referenceDate time.Time) Result {
	return parse(query, truncateToDay(referenceDate), 0)
}

func parse(query string, ref time.Time, depth int) Result {
	q := strings.ToLower(strings.TrimSpace(query))
	res := Result{ReferenceDate: ref, ReferenceYear: ref.Year()}

	// 1. Literal keywords anchored on the reference date.
	switch q {
	case "today":
		return res.withSingleDay("today", ref)
	case "yesterday":
		return res.withSingleDay("yesterday", ref.AddDate(0, 0, -1))
	case "tomorrow":
		return res.withSingleDay("tomorrow", ref.AddDate(0, 0, 1))
	}

	// 2. last N days
	if m := lastNDaysRe.FindStringSubmatch(q); m != nil {
		n, _ := strconv.Atoi(m[1])
		return res.withRange("last_n_days", ref.AddDate(0, 0, -n), ref)
	}

	// 3. this/last week (Monday start, Sunday end)
	switch q {
	case "this week":
		monday := startOfWeek(ref)
		return res.withRange("this_week", monday, monday.AddDate(0, 0, 6))
	case "last week":
		monday := startOfWeek(ref).AddDate(0, 0, -7)
		return res.withRange("last_week", monday, monday.AddDate(0, 0, 6))
	}

	// 4. this/last month and year boundaries
	switch q {
	case "this month":
		return res.withRange("this_month", startOfMonth(ref.Year(), ref.Month()), endOfMonth(ref.Year(), ref.Month()))
	case "last month":
		prev := startOfMonth(ref.Year(), ref.Month()).AddDate(0, -1, 0)
		return res.withRange("last_month", prev, endOfMonth(prev.Year(), prev.Month()))
	case "this year":
		return res.withRange("this_year", date(ref.Year(), time.January, 1), date(ref.Year(), time.December, 31))
	case "last year":
		return res.withRange("last_year", date(ref.Year()-1, time.January, 1), date(ref.Year()-1, time.December, 31))
	}

	// 5. Month-name + day, either order, optional year.
	if m := monthDayRe.FindStringSubmatch(q); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			if r, ok := singleDay(yearOrDefault(m[3], ref), month, atoi(m[2])); ok {
				return res.withSingleDay("month_day", r)
			}
		}
	}
	if m := dayMonthRe.FindStringSubmatch(q); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			if r, ok := singleDay(yearOrDefault(m[3], ref), month, atoi(m[1])); ok {
				return res.withSingleDay("day_month", r)
			}
		}
	}

	// 6. Month-only expands to the full calendar month.
	if m := monthOnlyRe.FindStringSubmatch(q); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			year := yearOrDefault(m[2], ref)
			return res.withRange("month", startOfMonth(year, month), endOfMonth(year, month))
		}
	}

	// 7. ISO YYYY-MM-DD
	if m := isoRe.FindStringSubmatch(q); m != nil {
		if r, ok := singleDay(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])); ok {
			return res.withSingleDay("iso", r)
		}
	}

	// 8. Slash/dash numeric. Month-first; when the first component cannot be
	// a month, assume day-first and swap.
	if m := numericRe.FindStringSubmatch(q); m != nil {
		first, second := atoi(m[1]), atoi(m[2])
		year := ref.Year()
		if m[3] != "" {
			year = atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		month, day := first, second
		if first > 12 {
			month, day = second, first
		}
		if r, ok := singleDay(year, time.Month(month), day); ok {
			return res.withSingleDay("numeric", r)
		}
	}

	// 9. Compound "<A> to <B>": both halves must parse to ranges.
	if depth < maxCompoundDepth {
		if parts := strings.SplitN(q, " to ", 2); len(parts) == 2 {
			a := parse(parts[0], ref, depth+1)
			b := parse(parts[1], ref, depth+1)
			if a.Range != nil && b.Range != nil && !a.Range.Start.After(b.Range.End) {
				return res.withRange("compound", a.Range.Start, b.Range.End)
			}
		}
	}

	// No pattern matched: soft degrade, reference info already set.
	return res
}

// =============================================================================
// HELPERS
// =============================================================================

func (r Result) withSingleDay(pattern string, day time.Time) Result {
	return r.withRange(pattern, day, day)
}

func (r Result) withRange(pattern string, start, end time.Time) Result {
	r.Matched = pattern
	r.Range = &DateRange{Start: start, End: end}
	return r
}

func truncateToDay(t time.Time) time.Time {
	return date(t.Year(), t.Month(), t.Day())
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// singleDay builds a calendar date, rejecting overflow like February 30
// (time.Date would silently normalize it into March).
func singleDay(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := date(year, month, day)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func startOfWeek(t time.Time) time.Time {
	// time.Weekday puts Sunday at 0; shift so Monday starts the week.
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func startOfMonth(year int, month time.Month) time.Time {
	return date(year, month, 1)
}

func endOfMonth(year int, month time.Month) time.Time {
	return date(year, month, 1).AddDate(0, 1, -1)
}

func yearOrDefault(s string, ref time.Time) int {
	if s == "" {
		return ref.Year()
	}
	return atoi(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
