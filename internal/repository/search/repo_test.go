package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
)

func TestVectorSearch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "mataresit:docs" || q.K != 50 || q.VectorField != "embedding" {
			t.Errorf("unexpected query: %+v", q)
		}
		if len(q.Filter.Should) == 0 {
			t.Error("expected scope filter")
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			entry("r1", "Starbucks", 0.83, map[string]string{"total": "12.5", "merchant": "Starbucks"}),
		}}, nil
	}

	got, err := repo.VectorSearch(context.Background(), []float32{0.1}, testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.Key() != "receipt:r1" || c.Signals.Vector != 0.83 || c.Similarity != 0.83 {
		t.Errorf("unexpected candidate: %+v", c)
	}
	if v, ok := c.Amount(); !ok || v != 12.5 {
		t.Errorf("expected total 12.5, got %v", v)
	}
	if c.Metadata[candidate.MetaEntityDate] != "2025-10-09" {
		t.Errorf("unexpected entity date %v", c.Metadata[candidate.MetaEntityDate])
	}
}

func TestFullTextSearch_NormalizesByBest(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if !q.WithScores {
			t.Error("expected WITHSCORES")
		}
		if q.Query != "@title|description|merchant|content:(coffee | beans)" {
			t.Errorf("unexpected query %q", q.Query)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			entry("r1", "Coffee Beans", 8, nil),
			entry("r2", "Coffee", 2, nil),
		}}, nil
	}

	got, err := repo.FullTextSearch(context.Background(), "Coffee, beans!", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Signals.FullText != 1 || got[1].Signals.FullText != 0.25 {
		t.Errorf("unexpected normalization: %v, %v", got[0].Signals.FullText, got[1].Signals.FullText)
	}
}

func TestFullTextSearch_EmptyText(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be called for empty text")
		return nil, nil
	}
	got, err := repo.FullTextSearch(context.Background(), "  ?? ", testRequest())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestTrigramSearch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if !strings.Contains(q.Query, "%starbuck%") || strings.Contains(q.Query, "%at%") {
			t.Errorf("unexpected fuzzy query %q", q.Query)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			entry("r1", "Starbucks", 0, nil),
			entry("r2", "Tesco", 0, map[string]string{"merchant": "Tesco Extra"}),
		}}, nil
	}

	got, err := repo.TrigramSearch(context.Background(), "starbuck at", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Signals.Fuzzy <= got[1].Signals.Fuzzy {
		t.Errorf("expected closer spelling to score higher: %v vs %v", got[0].Signals.Fuzzy, got[1].Signals.Fuzzy)
	}
}

func TestKeywordSearch_Scores(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.Query != "@title|description|merchant|content:(starbucks*)" {
			t.Errorf("unexpected query %q", q.Query)
		}
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			entry("r1", "Starbucks", 0, nil),
			entry("r2", "Starbucks Malaysia Sdn Bhd", 0, nil),
			entry("r3", "Receipt", 0, map[string]string{"description": "starbucksy"}),
		}}, nil
	}

	got, err := repo.KeywordSearch(context.Background(), "Starbucks", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1.0, 0.8, 0.6}
	for i, w := range want {
		if got[i].Signals.Keyword != w {
			t.Errorf("candidate %d: keyword score %v, want %v", i, got[i].Signals.Keyword, w)
		}
	}
}

func TestFilterSearch_SimilarityIsOne(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.Query != "" || q.SortBy != "entity_date" || !q.SortDesc {
			t.Errorf("unexpected list query %+v", q)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{entry("r1", "A", 0, nil)}}, nil
	}
	got, err := repo.FilterSearch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Similarity != 1.0 {
		t.Errorf("expected similarity 1.0, got %v", got[0].Similarity)
	}
}

func TestSourceIDs_Dedupes(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Fields: map[string]string{"source_id": "a"}},
			{Fields: map[string]string{"source_id": "a"}},
			{Fields: map[string]string{"source_id": "b"}},
		}}, nil
	}
	ids, err := repo.SourceIDs(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %v", ids)
	}
}

func TestAggregate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.aggregateFn = func(_ context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
		if q.GroupBy[0] != "category" || q.SortBy != "sum_total" {
			t.Errorf("unexpected aggregate %+v", q)
		}
		return &db.AggregateResult{Rows: []map[string]string{
			{"category": "Food", "count": "3", "sum_total": "45.5", "currency": "MYR"},
			{"category": "", "count": "1", "sum_total": "1"},
		}}, nil
	}
	rows, err := repo.Aggregate(context.Background(), "category", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Group != "Food" || rows[0].Count != 3 || rows[0].Total != 45.5 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestSearch_WrapsStoreErrors(t *testing.T) {
	repo, ms := newTestRepo(t)
	boom := errors.New("boom")
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) { return nil, boom }
	if _, err := repo.VectorSearch(context.Background(), []float32{1}, testRequest()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("starbucks", "Starbucks"); got != 1 {
		t.Errorf("identical words should score 1, got %v", got)
	}
	if got := TrigramSimilarity("abc", ""); got != 0 {
		t.Errorf("empty side should score 0, got %v", got)
	}
	a := TrigramSimilarity("starbuks", "starbucks")
	b := TrigramSimilarity("starbuks", "tesco")
	if a <= b || a <= 0 || a >= 1 {
		t.Errorf("unexpected similarities %v, %v", a, b)
	}
}
