package preprocessor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
)

// recentDays is the window "recent" and "lately" resolve to.
const recentDays = 30

var (
	reRelativeN = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d{1,3})\s+(day|days|week|weeks|month|months)\b`)
	reISODate   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	reMonthName = regexp.MustCompile(`\b(?:(?:in|during|for|from|since)\s+)?` +
		`(january|february|march|april|may|june|july|august|september|october|november|december|` +
		`jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)(?:\s+(\d{4}))?\b`)
	reWord = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'&.-]*`)
)

// fixedPhrases resolve to a range relative to today. Longer phrases are matched first.
var fixedPhrases = []struct {
	phrase  string
	resolve func(today time.Time) (time.Time, time.Time)
}{
	{"this week", func(d time.Time) (time.Time, time.Time) { return startOfWeek(d), d }},
	{"last week", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -7), d }},
	{"past week", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -7), d }},
	{"this month", func(d time.Time) (time.Time, time.Time) { return startOfMonth(d), d }},
	{"last month", func(d time.Time) (time.Time, time.Time) {
		first := startOfMonth(d).AddDate(0, -1, 0)
		return first, first.AddDate(0, 1, -1)
	}},
	{"this year", func(d time.Time) (time.Time, time.Time) {
		return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC), d
	}},
	{"last year", func(d time.Time) (time.Time, time.Time) {
		return time.Date(d.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(d.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)
	}},
	{"yesterday", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -1), d.AddDate(0, 0, -1) }},
	{"today", func(d time.Time) (time.Time, time.Time) { return d, d }},
	{"recently", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -recentDays), d }},
	{"lately", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -recentDays), d }},
	{"recent", func(d time.Time) (time.Time, time.Time) { return d.AddDate(0, 0, -recentDays), d }},
}

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ambiguousMonths are everyday words that only count as months with a preposition or year.
var ambiguousMonths = map[string]bool{"may": true, "march": true, "mar": true, "jan": true, "sep": true}

// residueStopwords never count as semantic terms.
var residueStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "me": true, "i": true, "show": true,
	"find": true, "get": true, "list": true, "all": true, "any": true, "from": true,
	"in": true, "on": true, "at": true, "of": true, "for": true, "during": true,
	"since": true, "between": true, "and": true, "to": true, "with": true, "what": true,
	"which": true, "did": true, "do": true, "were": true, "was": true, "have": true,
	"made": true, "please": true, "by": true, "days": true, "day": true, "weeks": true,
	"receipt": true, "receipts": true, "purchase": true, "purchases": true,
	"expense": true, "expenses": true, "transaction": true, "transactions": true,
	"document": true, "documents": true, "record": true, "records": true, "items": true,
	"bought": true, "spent": true, "spend": true, "spending": true,
}

// ParseTemporal detects a date constraint in text and the semantic terms left once
// the temporal phrase and filler words are removed. now anchors relative phrases.
func ParseTemporal(text string, now time.Time) preprocess.TemporalSignal {
	lower := strings.ToLower(text)
	today := filter.Day(now)

	dr, phrase, rest := matchTemporal(lower, today)
	sig := preprocess.TemporalSignal{
		IsTemporal:      !dr.IsZero(),
		DateRange:       dr,
		Phrase:          phrase,
		SemanticTerms:   SemanticTerms(rest),
		RoutingStrategy: route.GeneralHybrid,
	}
	if sig.IsTemporal {
		sig.RoutingStrategy = route.TemporalFilterOnly
		if sig.HasSemanticTerms() {
			sig.RoutingStrategy = route.HybridTemporalSemantic
		}
	}
	return sig
}

func matchTemporal(s string, today time.Time) (filter.DateRange, string, string) {
	if m := reRelativeN.FindStringSubmatchIndex(s); m != nil {
		n, _ := strconv.Atoi(s[m[2]:m[3]])
		unit := s[m[4]:m[5]]
		var from time.Time
		switch {
		case strings.HasPrefix(unit, "day"):
			from = today.AddDate(0, 0, -n)
		case strings.HasPrefix(unit, "week"):
			from = today.AddDate(0, 0, -7*n)
		default:
			from = today.AddDate(0, -n, 0)
		}
		return mustRange(from, today), s[m[0]:m[1]], cut(s, m[0], m[1])
	}

	if ms := reISODate.FindAllStringSubmatchIndex(s, 2); len(ms) > 0 {
		first, err1 := time.Parse(time.DateOnly, s[ms[0][2]:ms[0][3]])
		if err1 == nil {
			last := first
			end := ms[0][1]
			if len(ms) == 2 {
				if second, err2 := time.Parse(time.DateOnly, s[ms[1][2]:ms[1][3]]); err2 == nil {
					last, end = second, ms[1][1]
				}
			}
			if last.Before(first) {
				first, last = last, first
			}
			return mustRange(first, last), s[ms[0][0]:end], cut(s, ms[0][0], end)
		}
	}

	for _, p := range fixedPhrases {
		if i := indexWord(s, p.phrase); i >= 0 {
			from, to := p.resolve(today)
			return mustRange(from, to), p.phrase, cut(s, i, i+len(p.phrase))
		}
	}

	for _, m := range reMonthName.FindAllStringSubmatchIndex(s, -1) {
		name := s[m[2]:m[3]]
		hasPrep := m[2] > m[0]
		hasYear := m[4] >= 0
		if ambiguousMonths[name] && !hasPrep && !hasYear {
			continue
		}
		month := monthNumbers[name]
		year := today.Year()
		if hasYear {
			year, _ = strconv.Atoi(s[m[4]:m[5]])
		} else if month > today.Month() {
			year--
		}
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		if last.After(today) {
			last = today
		}
		return mustRange(first, last), s[m[0]:m[1]], cut(s, m[0], m[1])
	}

	return filter.DateRange{}, "", s
}

// SemanticTerms tokenizes text and drops filler words and bare numbers.
func SemanticTerms(text string) []string {
	words := reWord.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimRight(w, ".-'")
		if w == "" || residueStopwords[w] {
			continue
		}
		if _, err := strconv.ParseFloat(w, 64); err == nil {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// indexWord finds phrase in s on word boundaries.
func indexWord(s, phrase string) int {
	from := 0
	for {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(phrase)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func cut(s string, start, end int) string {
	return strings.TrimSpace(s[:start] + " " + s[end:])
}

func mustRange(from, to time.Time) filter.DateRange {
	dr, err := filter.NewDateRange(from, to)
	if err != nil {
		return filter.DateRange{}
	}
	return dr
}

func startOfWeek(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7 // Monday-based
	return d.AddDate(0, 0, -offset)
}

func startOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}
