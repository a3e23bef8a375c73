package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
)

type mockRepo struct {
	mu    sync.Mutex
	calls []string

	vectorFn    func(ctx context.Context, vec []float32, req retrieval.Request) ([]candidate.Candidate, error)
	fullTextFn  func(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	trigramFn   func(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	keywordFn   func(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	filterFn    func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error)
	sourceIDsFn func(ctx context.Context, req retrieval.Request) ([]string, error)
	aggregateFn func(ctx context.Context, groupBy string, req retrieval.Request) ([]retrieval.AggregateRow, error)
}

func (m *mockRepo) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockRepo) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockRepo) VectorSearch(ctx context.Context, vec []float32, req retrieval.Request) ([]candidate.Candidate, error) {
	m.record("vector")
	if m.vectorFn == nil {
		return nil, nil
	}
	return m.vectorFn(ctx, vec, req)
}

func (m *mockRepo) FullTextSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error) {
	m.record("full_text")
	if m.fullTextFn == nil {
		return nil, nil
	}
	return m.fullTextFn(ctx, text, req)
}

func (m *mockRepo) TrigramSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error) {
	m.record("fuzzy")
	if m.trigramFn == nil {
		return nil, nil
	}
	return m.trigramFn(ctx, text, req)
}

func (m *mockRepo) KeywordSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error) {
	m.record("keyword")
	if m.keywordFn == nil {
		return nil, nil
	}
	return m.keywordFn(ctx, text, req)
}

func (m *mockRepo) FilterSearch(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
	m.record("filter")
	if m.filterFn == nil {
		return nil, nil
	}
	return m.filterFn(ctx, req)
}

func (m *mockRepo) SourceIDs(ctx context.Context, req retrieval.Request) ([]string, error) {
	m.record("source_ids")
	if m.sourceIDsFn == nil {
		return nil, nil
	}
	return m.sourceIDsFn(ctx, req)
}

func (m *mockRepo) Aggregate(ctx context.Context, groupBy string, req retrieval.Request) ([]retrieval.AggregateRow, error) {
	m.record("aggregate")
	if m.aggregateFn == nil {
		return nil, nil
	}
	return m.aggregateFn(ctx, groupBy, req)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]any
}

func newMemCache() *memCache { return &memCache{data: map[string]any{}} }

func (c *memCache) Load(_ context.Context, _, key string, out any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false
	}
	if rows, ok := out.(*[]retrieval.AggregateRow); ok {
		*rows = v.([]retrieval.AggregateRow)
		return true
	}
	return false
}

func (c *memCache) Store(_ context.Context, _, key string, v any, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

func newExecutor(repo *mockRepo, c ResultCache) *Executor {
	return NewExecutor(repo, c, Config{TierTimeout: time.Second, AggregateTTL: time.Minute}, zap.NewNop())
}
