package preprocessor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
)

const (
	amountPat   = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`
	curPrefix   = `(\$|rm|usd|myr|sgd|eur)?\s?`
	curSuffix   = `(?:\s?(rm|usd|myr|sgd|eur|dollars?|ringgit))?`
	moneyAmount = curPrefix + amountPat + curSuffix
)

var (
	reBetween = regexp.MustCompile(`\bbetween\s+` + moneyAmount + `\s+(?:and|to|-)\s+` + moneyAmount)
	reSpan    = regexp.MustCompile(`(?:^|\s)` + moneyAmount + `\s*(?:to|-)\s*` + moneyAmount + `\b`)
	reOver    = regexp.MustCompile(`(?:\b(?:over|above|more than|greater than|at least|exceeding)|>=?)\s*` + moneyAmount)
	reUnder   = regexp.MustCompile(`(?:\b(?:under|below|less than|cheaper than|at most)|<=?)\s*` + moneyAmount)
)

var currencyCodes = map[string]string{
	"$": "USD", "usd": "USD", "dollar": "USD", "dollars": "USD",
	"rm": "MYR", "myr": "MYR", "ringgit": "MYR",
	"sgd": "SGD", "eur": "EUR",
}

// Money is the monetary constraint found in a query.
type Money struct {
	Range    filter.AmountRange
	Currency string
	Amounts  []float64
	Phrase   string
	// Rest is the query with the monetary phrase removed.
	Rest string
}

// ParseMoney extracts an amount range ("over 50", "under RM20", "between 10 and 30",
// "$5 to $15") and the currency it names.
func ParseMoney(text string) Money {
	s := strings.ToLower(text)
	out := Money{Rest: text}

	// each amount occupies three submatch groups: prefix, number, suffix
	if m := reBetween.FindStringSubmatchIndex(s); m != nil {
		return spanMoney(s, m, out)
	}
	if m := reSpan.FindStringSubmatchIndex(s); m != nil && hasCurrency(s, m) {
		return spanMoney(s, m, out)
	}
	if m := reOver.FindStringSubmatchIndex(s); m != nil {
		v, cur := amountAt(s, m, 0)
		out.Range, _ = filter.NewAmountRange(&v, nil)
		return finish(s, m, out, cur, v)
	}
	if m := reUnder.FindStringSubmatchIndex(s); m != nil {
		v, cur := amountAt(s, m, 0)
		out.Range, _ = filter.NewAmountRange(nil, &v)
		return finish(s, m, out, cur, v)
	}
	return out
}

func spanMoney(s string, m []int, out Money) Money {
	lo, cur1 := amountAt(s, m, 0)
	hi, cur2 := amountAt(s, m, 1)
	if hi < lo {
		lo, hi = hi, lo
	}
	out.Range, _ = filter.NewAmountRange(&lo, &hi)
	cur := cur1
	if cur == "" {
		cur = cur2
	}
	return finish(s, m, out, cur, lo, hi)
}

// hasCurrency requires a bare "N to M" span to name a currency, so "top 5 to 10" stays text.
func hasCurrency(s string, m []int) bool {
	_, c1 := amountAt(s, m, 0)
	_, c2 := amountAt(s, m, 1)
	return c1 != "" || c2 != ""
}

func amountAt(s string, m []int, n int) (float64, string) {
	base := 2 + n*6
	var cur string
	if m[base] >= 0 {
		cur = currencyCodes[s[m[base]:m[base+1]]]
	}
	num := strings.ReplaceAll(s[m[base+2]:m[base+3]], ",", "")
	if cur == "" && m[base+4] >= 0 {
		cur = currencyCodes[s[m[base+4]:m[base+5]]]
	}
	v, _ := strconv.ParseFloat(num, 64)
	return v, cur
}

func finish(s string, m []int, out Money, cur string, amounts ...float64) Money {
	out.Currency = cur
	out.Amounts = amounts
	out.Phrase = strings.TrimSpace(s[m[0]:m[1]])
	out.Rest = strings.TrimSpace(s[:m[0]] + " " + s[m[1]:])
	return out
}
