package retrieval

import (
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
)

// Request is what every search primitive receives.
// Filters holds only the constraints pushed down by routing; the rest are applied after ranking.
type Request struct {
	Scope   domain.Scope
	Filters filter.Filters
	Limit   int
}

// AggregateRow is one group of a financial aggregation.
type AggregateRow struct {
	Group    string
	Count    int
	Total    float64
	Currency string
}
