package route

import "github.com/noa10/mataresit-sub011/internal/domain/search/filter"

// Strategy is the execution path chosen for a query.
type Strategy string

// Strategy constants.
const (
	FinancialAggregation   Strategy = "financial_aggregation"
	TemporalFilterOnly     Strategy = "temporal_filter_only"
	HybridTemporalSemantic Strategy = "hybrid_temporal_semantic"
	GeneralHybrid          Strategy = "general_hybrid"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	switch s {
	case FinancialAggregation, TemporalFilterOnly, HybridTemporalSemantic, GeneralHybrid:
		return true
	}
	return false
}

// Method names the retrieval method that actually produced the results.
type Method string

// Method constants.
const (
	EnhancedHybrid Method = "enhanced_hybrid"
	Vector         Method = "vector"
	FullText       Method = "full_text"
	Fuzzy          Method = "fuzzy"
	Keyword        Method = "keyword"
	DateFilter     Method = "date_filter"
	Aggregation    Method = "financial_aggregation"
	TemporalHybrid Method = "temporal_hybrid"
	None           Method = "none"
)

// Thresholds gate the similarity-based primitives.
type Thresholds struct {
	Vector  float64
	Trigram float64
}

// Decision is an immutable routing decision.
type Decision struct {
	strategy      Strategy
	thresholds    Thresholds
	pushDown      filter.Filters
	semanticTerms []string
	bypass        bool
}

// NewDecision creates a Decision. pushDown holds the filters applied inside the search primitives.
func NewDecision(
	s Strategy, th Thresholds, pushDown filter.Filters, semanticTerms []string, bypass bool,
) Decision {
	terms := make([]string, len(semanticTerms))
	copy(terms, semanticTerms)
	return Decision{
		strategy: s, thresholds: th, pushDown: pushDown,
		semanticTerms: terms, bypass: bypass,
	}
}

// Strategy returns the chosen path.
func (d Decision) Strategy() Strategy { return d.strategy }

// Thresholds returns the similarity gates in effect.
func (d Decision) Thresholds() Thresholds { return d.thresholds }

// PushDown returns the filters applied inside the search primitives.
func (d Decision) PushDown() filter.Filters { return d.pushDown }

// DateRange returns the temporal constraint pushed down to the search stage.
func (d Decision) DateRange() filter.DateRange { return d.pushDown.Date() }

// SemanticTerms returns a copy of the residual non-temporal query terms.
func (d Decision) SemanticTerms() []string {
	out := make([]string, len(d.semanticTerms))
	copy(out, d.semanticTerms)
	return out
}

// ThresholdBypass reports whether monetary filters zeroed the similarity gates.
func (d Decision) ThresholdBypass() bool { return d.bypass }
