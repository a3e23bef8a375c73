package query

import (
	"fmt"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Query parameter limits.
const (
	// MaxTextLength is the maximum allowed query text length.
	MaxTextLength    = 2048
	DefaultLimit     = 20
	MaxLimit         = 100
	MaxOffset        = 10000
	DefaultThreshold = 0.2
	MaxHistoryTurns  = 10
)

// Params are the raw inputs to New.
type Params struct {
	Text          string
	Scope         domain.Scope
	Filters       filter.Filters
	Limit         int
	Offset        int
	Threshold     *float64
	DiversityMode ranking.DiversityMode
	Weights       ranking.Weights
	History       []preprocess.HistoryTurn
	Profile       preprocess.Profile
}

// Query is a validated search request.
type Query struct {
	text      string
	scope     domain.Scope
	filters   filter.Filters
	limit     int
	offset    int
	threshold float64
	diversity ranking.DiversityMode
	weights   ranking.Weights
	history   []preprocess.HistoryTurn
	profile   preprocess.Profile
}

// New validates and normalizes search parameters.
// Defaults: limit=20, threshold=0.2, diversity=relevance, weights=0.4/0.3/0.2/0.1.
// Empty text is accepted only when at least one filter is present.
func New(p Params) (Query, error) {
	text := strings.Join(strings.Fields(p.Text), " ")
	if text == "" && p.Filters.IsEmpty() {
		return Query{}, fmt.Errorf("query text or at least one filter is required")
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxTextLength)
	}
	if p.Scope.IsZero() {
		return Query{}, fmt.Errorf("user or team scope is required")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if p.Offset < 0 || p.Offset > MaxOffset {
		return Query{}, fmt.Errorf("offset must be between 0 and %d", MaxOffset)
	}
	threshold := DefaultThreshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return Query{}, fmt.Errorf("similarity threshold must be between 0 and 1")
	}
	diversity := p.DiversityMode
	if diversity == "" {
		diversity = ranking.Relevance
	}
	if !diversity.IsValid() {
		return Query{}, fmt.Errorf("invalid diversity mode: %q", diversity)
	}
	weights := p.Weights
	if weights.IsZero() {
		weights = ranking.DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return Query{}, err
	}
	history := p.History
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	return Query{
		text:      text,
		scope:     p.Scope,
		filters:   p.Filters,
		limit:     limit,
		offset:    p.Offset,
		threshold: threshold,
		diversity: diversity,
		weights:   weights,
		history:   history,
		profile:   p.Profile,
	}, nil
}

// Text returns the whitespace-normalized query text.
func (q *Query) Text() string { return q.text }

// Normalized returns the lower-cased text used for cache keys.
func (q *Query) Normalized() string { return strings.ToLower(q.text) }

// Scope returns the requesting identity scope.
func (q *Query) Scope() domain.Scope { return q.scope }

// Filters returns the declared filters.
func (q *Query) Filters() filter.Filters { return q.filters }

// Limit returns the page size.
func (q *Query) Limit() int { return q.limit }

// Offset returns the page offset.
func (q *Query) Offset() int { return q.offset }

// Threshold returns the minimum similarity for gated primitives.
func (q *Query) Threshold() float64 { return q.threshold }

// DiversityMode returns the ordering policy.
func (q *Query) DiversityMode() ranking.DiversityMode { return q.diversity }

// Weights returns the ranking weights.
func (q *Query) Weights() ranking.Weights { return q.weights }

// History returns the recent conversation turns.
func (q *Query) History() []preprocess.HistoryTurn { return q.history }

// Profile returns the user profile.
func (q *Query) Profile() preprocess.Profile { return q.profile }

// CandidateBudget is the over-fetch size: max(floor, limit*3).
func (q *Query) CandidateBudget(floor int) int {
	return max(floor, q.limit*3)
}
