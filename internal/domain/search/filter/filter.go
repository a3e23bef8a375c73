package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MaxListValues is the maximum number of values in a status or source-type allow-list.
const MaxListValues = 32

// DateRange is an inclusive calendar-day range. Times are truncated to UTC days.
type DateRange struct {
	from time.Time
	to   time.Time
}

// NewDateRange validates and creates a DateRange. Either bound may be zero (open).
func NewDateRange(from, to time.Time) (DateRange, error) {
	if from.IsZero() && to.IsZero() {
		return DateRange{}, fmt.Errorf("at least one date bound is required")
	}
	from, to = Day(from), Day(to)
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return DateRange{}, fmt.Errorf("date range end %s precedes start %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return DateRange{from: from, to: to}, nil
}

// LastDays returns the range [today-n, today].
func LastDays(now time.Time, n int) DateRange {
	today := Day(now)
	return DateRange{from: today.AddDate(0, 0, -n), to: today}
}

// From returns the inclusive lower bound (zero if open).
func (r DateRange) From() time.Time { return r.from }

// To returns the inclusive upper bound (zero if open).
func (r DateRange) To() time.Time { return r.to }

// IsZero reports whether the range has no bounds.
func (r DateRange) IsZero() bool { return r.from.IsZero() && r.to.IsZero() }

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	d := Day(t)
	if !r.from.IsZero() && d.Before(r.from) {
		return false
	}
	if !r.to.IsZero() && d.After(r.to) {
		return false
	}
	return true
}

// String renders the range as "from..to" with open bounds left empty.
func (r DateRange) String() string {
	var from, to string
	if !r.from.IsZero() {
		from = r.from.Format(time.DateOnly)
	}
	if !r.to.IsZero() {
		to = r.to.Format(time.DateOnly)
	}
	return from + ".." + to
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AmountRange bounds a monetary total. Min and max are handled independently.
type AmountRange struct {
	min *float64
	max *float64
}

// NewAmountRange validates and creates an AmountRange.
func NewAmountRange(minAmount, maxAmount *float64) (AmountRange, error) {
	if minAmount != nil && *minAmount < 0 {
		return AmountRange{}, fmt.Errorf("amount min must be non-negative, got %g", *minAmount)
	}
	if maxAmount != nil && *maxAmount < 0 {
		return AmountRange{}, fmt.Errorf("amount max must be non-negative, got %g", *maxAmount)
	}
	if minAmount != nil && maxAmount != nil && *maxAmount < *minAmount {
		return AmountRange{}, fmt.Errorf("amount max %g is below min %g", *maxAmount, *minAmount)
	}
	return AmountRange{min: minAmount, max: maxAmount}, nil
}

// Min returns the inclusive lower bound.
func (r AmountRange) Min() *float64 { return r.min }

// Max returns the inclusive upper bound.
func (r AmountRange) Max() *float64 { return r.max }

// IsSet reports whether either bound is present.
func (r AmountRange) IsSet() bool { return r.min != nil || r.max != nil }

// Contains reports whether v satisfies every present bound.
func (r AmountRange) Contains(v float64) bool {
	if r.min != nil && v < *r.min {
		return false
	}
	if r.max != nil && v > *r.max {
		return false
	}
	return true
}

// Filters are the declarative constraints a caller attaches to a query.
type Filters struct {
	date        DateRange
	amount      AmountRange
	statuses    []string
	sourceTypes []string
	ids         []string
}

// New validates and creates Filters. Status and source-type values are lower-cased.
func New(date DateRange, amount AmountRange, statuses, sourceTypes []string) (Filters, error) {
	if len(statuses) > MaxListValues {
		return Filters{}, fmt.Errorf("too many statuses (max %d)", MaxListValues)
	}
	if len(sourceTypes) > MaxListValues {
		return Filters{}, fmt.Errorf("too many source types (max %d)", MaxListValues)
	}
	return Filters{
		date:        date,
		amount:      amount,
		statuses:    normalize(statuses),
		sourceTypes: normalize(sourceTypes),
	}, nil
}

// Date returns the entity-date range.
func (f Filters) Date() DateRange { return f.date }

// Amount returns the amount range.
func (f Filters) Amount() AmountRange { return f.amount }

// Statuses returns the status allow-list.
func (f Filters) Statuses() []string { return f.statuses }

// SourceTypes returns the source-type allow-list.
func (f Filters) SourceTypes() []string { return f.sourceTypes }

// IDs returns the source-ID scope pushed down by temporal hybrid search.
func (f Filters) IDs() []string { return f.ids }

// IsEmpty reports whether no constraint is present.
func (f Filters) IsEmpty() bool {
	return f.date.IsZero() && !f.amount.IsSet() &&
		len(f.statuses) == 0 && len(f.sourceTypes) == 0 && len(f.ids) == 0
}

// WithDate returns a copy constrained to r.
func (f Filters) WithDate(r DateRange) Filters {
	f.date = r
	return f
}

// WithAmount returns a copy constrained to r.
func (f Filters) WithAmount(r AmountRange) Filters {
	f.amount = r
	return f
}

// WithIDs returns a copy scoped to the given source IDs.
func (f Filters) WithIDs(ids []string) Filters {
	f.ids = slices.Clone(ids)
	return f
}

// AllowsStatus reports whether status passes the allow-list (empty list allows all).
func (f Filters) AllowsStatus(status string) bool {
	return len(f.statuses) == 0 || slices.Contains(f.statuses, strings.ToLower(status))
}

// AllowsSourceType reports whether sourceType passes the allow-list (empty list allows all).
func (f Filters) AllowsSourceType(sourceType string) bool {
	return len(f.sourceTypes) == 0 || slices.Contains(f.sourceTypes, strings.ToLower(sourceType))
}

func normalize(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
