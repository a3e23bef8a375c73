// Package router picks the search execution path for a preprocessed query.
package router

import (
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
)

// DefaultTrigramThreshold gates fuzzy matches when no bypass applies.
const DefaultTrigramThreshold = 0.3

// Config tunes routing.
type Config struct {
	// MonetaryBypass zeroes the similarity gates whenever an amount filter is present.
	MonetaryBypass   bool
	TrigramThreshold float64
}

// DefaultConfig keeps the monetary bypass on.
func DefaultConfig() Config {
	return Config{MonetaryBypass: true, TrigramThreshold: DefaultTrigramThreshold}
}

// EffectiveFilters merges caller filters with what preprocessing extracted.
// Declared date and amount ranges win over extracted ones.
func EffectiveFilters(pre preprocess.Result, q query.Query) filter.Filters {
	f := q.Filters()
	if f.Date().IsZero() && pre.Temporal.IsTemporal {
		f = f.WithDate(pre.Temporal.DateRange)
	}
	if !f.Amount().IsSet() && pre.Amount.IsSet() {
		f = f.WithAmount(pre.Amount)
	}
	return f
}

// Route decides the execution path. It is pure: same inputs, same decision.
func Route(pre preprocess.Result, q query.Query, cfg Config) route.Decision {
	eff := EffectiveFilters(pre, q)

	bypass := cfg.MonetaryBypass && eff.Amount().IsSet()
	th := route.Thresholds{Vector: q.Threshold(), Trigram: cfg.TrigramThreshold}
	if bypass {
		th = route.Thresholds{}
	}

	var push filter.Filters
	if bypass {
		push = push.WithAmount(eff.Amount())
	}

	switch {
	case pre.Intent == intent.FinancialAnalysis:
		return route.NewDecision(route.FinancialAggregation, th, eff, nil, bypass)
	case q.Text() == "":
		// filters only: list what matches
		return route.NewDecision(route.TemporalFilterOnly, th, eff, nil, bypass)
	case pre.Temporal.IsTemporal && !pre.Temporal.HasSemanticTerms():
		return route.NewDecision(route.TemporalFilterOnly, th, push.WithDate(eff.Date()), nil, bypass)
	case pre.Temporal.IsTemporal:
		return route.NewDecision(route.HybridTemporalSemantic, th, push.WithDate(eff.Date()),
			pre.Temporal.SemanticTerms, bypass)
	}
	return route.NewDecision(route.GeneralHybrid, th, push, nil, bypass)
}

// NeedsVector reports whether the path Route will pick uses a query embedding.
func NeedsVector(pre preprocess.Result, q query.Query, cfg Config) bool {
	if q.Text() == "" {
		return false
	}
	return UsesVector(Route(pre, q, cfg))
}

// UsesVector reports whether d's path ranks by a query embedding.
func UsesVector(d route.Decision) bool {
	switch d.Strategy() {
	case route.HybridTemporalSemantic, route.GeneralHybrid:
		return true
	}
	return false
}

// SearchText is the text handed to the embedding and lexical primitives:
// the residual terms on the temporal hybrid path, otherwise the expanded query.
func SearchText(pre preprocess.Result, q query.Query, d route.Decision) string {
	if terms := d.SemanticTerms(); len(terms) > 0 {
		return strings.Join(terms, " ")
	}
	if exp := strings.TrimSpace(pre.ExpandedQuery); exp != "" {
		return exp
	}
	return q.Text()
}
