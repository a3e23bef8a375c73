package preprocess

import (
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
)

// DefaultConfidence is used when classification falls back to defaults.
const DefaultConfidence = 0.5

// DefaultCurrency applies when neither the profile nor the query names one.
const DefaultCurrency = "MYR"

// Entities are the structured values extracted from a query.
type Entities struct {
	Merchants  []string  `json:"merchants"`
	Dates      []string  `json:"dates"`
	Categories []string  `json:"categories"`
	Amounts    []float64 `json:"amounts"`
	TimeRanges []string  `json:"time_ranges"`
	Currencies []string  `json:"currencies"`
}

// Classification describes query shape.
type Classification struct {
	Complexity   string `json:"complexity"`
	Specificity  string `json:"specificity"`
	AnalysisType string `json:"analysis_type"`
}

// TemporalSignal is the temporal-routing hint derived from the query.
type TemporalSignal struct {
	IsTemporal      bool
	RoutingStrategy route.Strategy
	DateRange       filter.DateRange
	SemanticTerms   []string
	Phrase          string
}

// HasSemanticTerms reports whether non-temporal terms remain.
func (t TemporalSignal) HasSemanticTerms() bool { return len(t.SemanticTerms) > 0 }

// Result is the output of query preprocessing.
type Result struct {
	OriginalQuery  string
	ExpandedQuery  string
	Intent         intent.Intent
	Confidence     float64
	Entities       Entities
	Classification Classification
	Temporal       TemporalSignal
	Amount         filter.AmountRange
	Currency       string
	// Degraded is set when the LLM was unavailable or returned unusable output.
	Degraded bool
	Model    string
}

// Default returns the deterministic fallback result.
func Default(query, currency string) Result {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Result{
		OriginalQuery: query,
		ExpandedQuery: query,
		Intent:        intent.GeneralSearch,
		Confidence:    DefaultConfidence,
		Entities:      Entities{Currencies: []string{}},
		Classification: Classification{
			Complexity:   "simple",
			Specificity:  "general",
			AnalysisType: "retrieval",
		},
		Temporal: TemporalSignal{RoutingStrategy: route.GeneralHybrid},
		Currency: currency,
		Degraded: true,
		Model:    "fallback",
	}
}

// HistoryTurn is one prior conversation exchange.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile carries per-user preferences used during preprocessing.
type Profile struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
}
