package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

var rows = []retrieval.AggregateRow{
	{Group: "food", Count: 12, Total: 340.5, Currency: "MYR"},
	{Group: "transport", Count: 4, Total: 120, Currency: "MYR"},
	{Group: "office", Count: 1, Total: 15, Currency: "MYR"},
}

func TestSynthesize_SimilarityStrictlyDecreasing(t *testing.T) {
	cands := Synthesize(rows, schema.FieldCategory)
	require.Len(t, cands, 3)

	for i := 1; i < len(cands); i++ {
		assert.Greater(t, cands[i-1].Similarity, cands[i].Similarity)
	}
	assert.Equal(t, 1.0, cands[0].Similarity)
	assert.Equal(t, AnalysisSourceType, cands[0].SourceType)
	assert.Equal(t, "food", cands[0].Title)
	total, ok := cands[0].Amount()
	assert.True(t, ok)
	assert.Equal(t, 340.5, total)
}

func TestExecute_AggregationUsesCache(t *testing.T) {
	repo := &mockRepo{
		aggregateFn: func(_ context.Context, groupBy string, _ retrieval.Request) ([]retrieval.AggregateRow, error) {
			assert.Equal(t, schema.FieldCategory, groupBy)
			return rows, nil
		},
	}
	c := newMemCache()
	e := newExecutor(repo, c)
	in := Input{
		Decision: route.NewDecision(route.FinancialAggregation, route.Thresholds{}, filter.Filters{}, nil, false),
		Query:    newQuery(t, "how much did I spend by category", filter.Filters{}),
		Text:     "how much did I spend by category",
	}

	first, err := e.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, route.Aggregation, first.Method)
	assert.Len(t, first.Candidates, 3)

	second, err := e.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Aggregates, second.Aggregates)
	assert.Equal(t, 1, repo.called("aggregate"))
}

func TestExecute_AggregationFailureFallsBack(t *testing.T) {
	repo := &mockRepo{
		aggregateFn: func(context.Context, string, retrieval.Request) ([]retrieval.AggregateRow, error) {
			return nil, errBackend
		},
		keywordFn: func(context.Context, string, retrieval.Request) ([]candidate.Candidate, error) {
			return hits("keyword", "k"), nil
		},
	}
	out, err := newExecutor(repo, nil).Execute(context.Background(), Input{
		Decision: route.NewDecision(route.FinancialAggregation, route.Thresholds{}, filter.Filters{}, nil, false),
		Query:    newQuery(t, "total spend", filter.Filters{}),
		Text:     "total spend",
	})
	require.NoError(t, err)
	assert.Equal(t, route.Keyword, out.Method)
	assert.Equal(t, route.Aggregation, out.Attempted[0])
}
