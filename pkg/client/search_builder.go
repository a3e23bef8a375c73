package client

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/noa10/mataresit-sub011/pkg/api"
)

// SearchBuilder is a fluent builder for search requests.
type SearchBuilder struct {
	req api.SearchRequest
}

// NewSearch starts a request for text. Text may be empty when a filter is set.
func NewSearch(text string) *SearchBuilder {
	return &SearchBuilder{req: api.SearchRequest{Query: text}}
}

func (b *SearchBuilder) filters() *api.SearchFilters {
	if b.req.Filters == nil {
		b.req.Filters = &api.SearchFilters{}
	}
	return b.req.Filters
}

// Between restricts results to entity dates in [from, to]. A zero bound is open.
func (b *SearchBuilder) Between(from, to time.Time) *SearchBuilder {
	f := b.filters()
	if !from.IsZero() {
		f.DateFrom = &openapi_types.Date{Time: from}
	}
	if !to.IsZero() {
		f.DateTo = &openapi_types.Date{Time: to}
	}
	return b
}

// AmountAtLeast sets the inclusive lower amount bound.
func (b *SearchBuilder) AmountAtLeast(v float64) *SearchBuilder {
	b.filters().AmountMin = &v
	return b
}

// AmountAtMost sets the inclusive upper amount bound.
func (b *SearchBuilder) AmountAtMost(v float64) *SearchBuilder {
	b.filters().AmountMax = &v
	return b
}

// Statuses restricts results to the given statuses.
func (b *SearchBuilder) Statuses(s ...string) *SearchBuilder {
	b.filters().Statuses = append(b.filters().Statuses, s...)
	return b
}

// SourceTypes restricts results to the given source types.
func (b *SearchBuilder) SourceTypes(s ...string) *SearchBuilder {
	b.filters().SourceTypes = append(b.filters().SourceTypes, s...)
	return b
}

// Limit sets the page size.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.req.Limit = &n
	return b
}

// Offset sets the page offset.
func (b *SearchBuilder) Offset(n int) *SearchBuilder {
	b.req.Offset = &n
	return b
}

// Threshold sets the minimum similarity for gated primitives.
func (b *SearchBuilder) Threshold(v float64) *SearchBuilder {
	b.req.SimilarityThreshold = &v
	return b
}

// Diversity sets the ordering policy: relevance, recency or diversity.
func (b *SearchBuilder) Diversity(mode string) *SearchBuilder {
	b.req.DiversityMode = &mode
	return b
}

// Weights overrides the ranking weights.
func (b *SearchBuilder) Weights(w api.SearchWeights) *SearchBuilder {
	b.req.Weights = &w
	return b
}

// History appends prior conversation turns.
func (b *SearchBuilder) History(turns ...api.HistoryTurn) *SearchBuilder {
	b.req.ConversationHistory = append(b.req.ConversationHistory, turns...)
	return b
}

// Profile sets currency and locale hints.
func (b *SearchBuilder) Profile(currency, locale string) *SearchBuilder {
	b.req.UserProfile = &api.UserProfile{Currency: currency, Locale: locale}
	return b
}

// Request returns the built request.
func (b *SearchBuilder) Request() api.SearchRequest { return b.req }
