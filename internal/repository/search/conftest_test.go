package search

import (
	"context"
	"testing"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	aggregateFn  func(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return &db.AggregateResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "docs"), ms
}

func testRequest() retrieval.Request {
	return retrieval.Request{Scope: domain.Scope{UserID: "u1"}, Limit: 50}
}

func entry(id, title string, score float64, extra map[string]string) db.SearchEntry {
	fields := map[string]string{
		"source_type":  "receipt",
		"source_id":    id,
		"content_type": "merchant",
		"title":        title,
		"created_at":   "1760000000",
		"entity_date":  "1759968000",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return db.SearchEntry{Key: "mataresit:doc:" + id, Score: score, Fields: fields}
}
