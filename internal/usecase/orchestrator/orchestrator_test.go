package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/pipeline"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/domain/search/rerank"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
	"github.com/noa10/mataresit-sub011/internal/usecase/search"
)

func ids(resp pipeline.Response) []string {
	out := make([]string, len(resp.Results))
	for i := range resp.Results {
		out[i] = resp.Results[i].Candidate.SourceID
	}
	return out
}

func TestSearch_LastWeekIsDateFilterOnly(t *testing.T) {
	f := newFixture(t)
	f.repo.filterFn = func(req retrieval.Request) ([]candidate.Candidate, error) {
		all := []candidate.Candidate{
			receipt("r1", "Tesco", 40, daysAgo(1)),
			receipt("r2", "Shell", 90, daysAgo(6)),
			receipt("r3", "Old", 10, daysAgo(20)),
		}
		out := pushedDown(req, all)
		for i := range out {
			out[i].Similarity = 1.0
		}
		return out, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "receipts from last week"}))
	require.NoError(t, err)

	assert.Equal(t, route.TemporalFilterOnly, resp.Strategy)
	assert.Equal(t, route.DateFilter, resp.Method)
	assert.Zero(t, f.embedder.calls)
	assert.True(t, resp.Success)
	require.ElementsMatch(t, []string{"r1", "r2"}, ids(resp))

	week := filter.LastDays(time.Now(), 7)
	for _, r := range resp.Results {
		assert.Equal(t, 1.0, r.Candidate.Similarity)
		assert.True(t, week.Contains(r.Candidate.EntityDate()), r.Candidate.SourceID)
	}
	assert.Contains(t, resp.Meta.Timings, pipeline.StageEmbedding)
	assert.Equal(t, rerank.ModelSkipped, resp.RerankModel)
}

func TestSearch_MonetaryFilterBypassesSimilarity(t *testing.T) {
	f := newFixture(t)
	f.repo.vectorFn = func(req retrieval.Request) ([]candidate.Candidate, error) {
		low := receipt("c1", "Kopi Corner", 80, daysAgo(2))
		low.Similarity, low.Signals.Vector = 0, 0
		cheap := receipt("c2", "Starbucks", 20, daysAgo(3))
		cheap.Similarity, cheap.Signals.Vector = 0.9, 0.9
		mid := receipt("c3", "Coffee Bean", 55, daysAgo(4))
		mid.Similarity, mid.Signals.Vector = 0.4, 0.4
		return pushedDown(req, []candidate.Candidate{low, cheap, mid}), nil
	}

	q := newQuery(t, query.Params{Text: "coffee purchases over 50", Filters: amountFilter(t, 50)})
	resp, err := f.orch.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, route.GeneralHybrid, resp.Strategy)
	assert.True(t, resp.ThresholdBypass)
	assert.Equal(t, 1, f.embedder.calls)
	require.NotEmpty(t, resp.Results)

	sawZero := false
	for _, r := range resp.Results {
		total, ok := r.Candidate.Amount()
		require.True(t, ok)
		assert.GreaterOrEqual(t, total, 50.0)
		if r.Candidate.Similarity == 0 {
			sawZero = true
		}
	}
	assert.True(t, sawZero, "zero-similarity candidate must survive the bypass")
}

func TestSearch_AmountOnlyQuery(t *testing.T) {
	f := newFixture(t)
	var pushed filter.Filters
	f.repo.filterFn = func(req retrieval.Request) ([]candidate.Candidate, error) {
		pushed = req.Filters
		c := receipt("r1", "Shell", 120, daysAgo(2))
		c.Similarity = 1
		return []candidate.Candidate{c}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Filters: amountFilter(t, 100)}))
	require.NoError(t, err)

	assert.True(t, resp.ThresholdBypass)
	assert.Zero(t, f.embedder.calls)
	assert.True(t, pushed.Amount().IsSet())
	assert.Equal(t, []string{"r1"}, ids(resp))
	assert.Equal(t, "Found 1 result for your filters.", resp.Answer.Text)
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	f := newFixture(t)
	partial := receipt("p", "Starbucks Malaysia Sdn Bhd", 30, daysAgo(1))
	partial.Similarity, partial.Signals.Vector = 0.95, 0.95
	exact := receipt("e", "Starbucks", 12, daysAgo(40))
	exact.Similarity, exact.Signals.Vector = 0.5, 0.5
	f.repo.vectorFn = func(retrieval.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{partial, exact}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "Starbucks"}))
	require.NoError(t, err)

	require.Equal(t, []string{"e", "p"}, ids(resp))
	assert.True(t, resp.Results[0].Score.ExactMatch)
	assert.Equal(t, route.EnhancedHybrid, resp.Method)
	assert.LessOrEqual(t, resp.Results[0].Score.Combined, 1.0)
}

func TestSearch_EnhancedFailureFallsToFullText(t *testing.T) {
	f := newFixture(t)
	f.repo.vectorFn = func(retrieval.Request) ([]candidate.Candidate, error) {
		return nil, errors.New("vector index offline")
	}
	f.repo.fullTextFn = func(string, retrieval.Request) ([]candidate.Candidate, error) {
		c := receipt("t1", "Grab", 15, daysAgo(3))
		c.Similarity, c.Signals.FullText = 0.6, 0.6
		return []candidate.Candidate{c}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "grab ride"}))
	require.NoError(t, err)

	assert.Equal(t, route.FullText, resp.Method)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, []string{"t1"}, ids(resp))
	assert.False(t, f.repo.called("fuzzy"))
	assert.False(t, f.repo.called("keyword"))
}

func TestSearch_NoResultsIsNotAnError(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "unicorn saddle"}))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Empty(t, resp.Results)
	assert.Equal(t, route.Keyword, resp.Method)
	assert.Equal(t, `No results found for "unicorn saddle".`, resp.Answer.Text)
}

func TestSearch_EmbeddingFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	f.embedder.embedFn = func(string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{}, fmt.Errorf("openai: %w", domain.ErrEmbeddingUnavailable)
	}

	_, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "coffee"}))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, string(pipeline.StageEmbedding), domain.FailedStage(err))
	assert.Empty(t, f.repo.calls)
}

func TestSearch_CancelledDuringEmbeddingFailsSearch(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.embedder.embedFn = func(string) (domain.EmbeddingResult, error) {
		cancel()
		return domain.EmbeddingResult{Embedding: []float32{1}}, nil
	}

	_, err := f.orch.Search(ctx, newQuery(t, query.Params{Text: "coffee"}))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, string(pipeline.StageSearch), domain.FailedStage(err))
}

func TestSearch_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Search(ctx, newQuery(t, query.Params{Text: "coffee"}))

	assert.Equal(t, string(pipeline.StagePreprocessing), domain.FailedStage(err))
	assert.Zero(t, f.embedder.calls)
}

func TestSearch_FinancialAnalysisAggregates(t *testing.T) {
	f := newFixture(t)
	f.preLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		return domain.Completion{Text: `{"intent":"financial_analysis","confidence":0.9,"expanded_query":"spending by category"}`}, nil
	}}
	f.rerankLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		t.Fatal("aggregation must not be re-ranked")
		return domain.Completion{}, nil
	}}
	f.rebuild()
	f.repo.aggregateFn = func(retrieval.Request) ([]retrieval.AggregateRow, error) {
		return []retrieval.AggregateRow{
			{Group: "dining", Count: 4, Total: 120, Currency: "MYR"},
			{Group: "fuel", Count: 2, Total: 80, Currency: "MYR"},
		}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "how much did I spend by category"}))
	require.NoError(t, err)

	assert.Equal(t, route.FinancialAggregation, resp.Strategy)
	assert.Equal(t, intent.FinancialAnalysis, resp.Intent)
	assert.Zero(t, f.embedder.calls)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "dining", resp.Results[0].Candidate.Title)
	assert.Greater(t, resp.Results[0].Candidate.Similarity, resp.Results[1].Candidate.Similarity)
	assert.Equal(t, search.AnalysisSourceType, resp.Results[0].Candidate.SourceType)
	assert.Equal(t, rerank.ModelSkipped, resp.RerankModel)
	assert.Equal(t, "Total spending across 2 groups: MYR 200.00.", resp.Answer.Text)
}

func TestSearch_ReRankApplied(t *testing.T) {
	f := newFixture(t)
	f.rerankLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		return domain.Completion{Text: `{"order":[2,1],"confidence":"high"}`, Model: "gpt-4o-mini"}, nil
	}}
	f.rebuild()
	a := receipt("a", "Alpha", 10, daysAgo(1))
	a.Similarity, a.Signals.Vector = 0.9, 0.9
	b := receipt("b", "Beta", 10, daysAgo(1))
	b.Similarity, b.Signals.Vector = 0.5, 0.5
	f.repo.vectorFn = func(retrieval.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{a, b}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "lunch"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, ids(resp))
	assert.Equal(t, rerank.High, resp.Confidence)
	assert.Equal(t, "gpt-4o-mini", resp.RerankModel)
	assert.Equal(t, 1, resp.Results[0].Position)
}

func TestSearch_ReRankFailureKeepsRankedOrder(t *testing.T) {
	f := newFixture(t)
	f.rerankLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		return domain.Completion{}, domain.ErrLLMUnavailable
	}}
	f.rebuild()
	a := receipt("a", "Alpha", 10, daysAgo(1))
	a.Similarity, a.Signals.Vector = 0.9, 0.9
	b := receipt("b", "Beta", 10, daysAgo(1))
	b.Similarity, b.Signals.Vector = 0.5, 0.5
	f.repo.vectorFn = func(retrieval.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{b, a}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "lunch"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(resp))
	assert.Equal(t, rerank.Low, resp.Confidence)
	assert.Equal(t, rerank.ModelFallback, resp.RerankModel)
	assert.Contains(t, resp.Meta.Warnings, "re-ranking fell back to ranked order")
}

func TestSearch_Paginates(t *testing.T) {
	f := newFixture(t)
	f.repo.vectorFn = func(req retrieval.Request) ([]candidate.Candidate, error) {
		assert.GreaterOrEqual(t, req.Limit, 50)
		var out []candidate.Candidate
		for i := range 5 {
			c := receipt(fmt.Sprintf("r%d", i), fmt.Sprintf("Shop %d", i), 10, daysAgo(1))
			c.Similarity = 0.9 - float64(i)*0.1
			c.Signals.Vector = c.Similarity
			out = append(out, c)
		}
		return out, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "shop", Limit: 2, Offset: 2}))
	require.NoError(t, err)

	assert.Equal(t, []string{"r2", "r3"}, ids(resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.Results[0].Position)
}

func TestSearch_RecencyOrderIsNotReRanked(t *testing.T) {
	f := newFixture(t)
	f.rerankLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		t.Fatal("recency ordering must not be re-ranked")
		return domain.Completion{}, nil
	}}
	f.rebuild()
	older := receipt("old", "Alpha", 10, daysAgo(2))
	older.Similarity, older.Signals.Vector = 0.9, 0.9
	older.CreatedAt = time.Now().Add(-48 * time.Hour)
	newer := receipt("new", "Beta", 10, daysAgo(1))
	newer.Similarity, newer.Signals.Vector = 0.5, 0.5
	newer.CreatedAt = time.Now().Add(-time.Hour)
	f.repo.vectorFn = func(retrieval.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{older, newer}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{
		Text: "lunch", DiversityMode: ranking.Recency,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "old"}, ids(resp))
	assert.Equal(t, rerank.ModelSkipped, resp.RerankModel)
	assert.Equal(t, rerank.Low, resp.Confidence)
}

func TestSearch_AggregationFailoverDocumentsAreRanked(t *testing.T) {
	f := newFixture(t)
	f.preLM = &mockLLM{completeFn: func(string) (domain.Completion, error) {
		return domain.Completion{Text: `{"intent":"financial_analysis","confidence":0.9}`}, nil
	}}
	f.rebuild()
	f.repo.aggregateFn = func(retrieval.Request) ([]retrieval.AggregateRow, error) {
		return nil, errors.New("aggregate unsupported")
	}
	weak := receipt("weak", "Alpha", 10, daysAgo(1))
	weak.Similarity, weak.Signals.FullText = 0.5, 0.1
	strong := receipt("strong", "Beta", 10, daysAgo(1))
	strong.Similarity, strong.Signals.FullText = 0.5, 0.9
	f.repo.fullTextFn = func(string, retrieval.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{weak, strong}, nil
	}

	resp, err := f.orch.Search(context.Background(), newQuery(t, query.Params{Text: "how much did I spend by category"}))
	require.NoError(t, err)

	assert.Equal(t, route.FinancialAggregation, resp.Strategy)
	assert.Equal(t, route.FullText, resp.Method)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, []string{"strong", "weak"}, ids(resp))
	assert.Greater(t, resp.Results[0].Score.FullText, 0.0)
}
