package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/usecase/preprocessor"
	"github.com/noa10/mataresit-sub011/internal/usecase/ranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/reranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/router"
	"github.com/noa10/mataresit-sub011/internal/usecase/search"
)

// fakeRepo is an in-memory datastore that honors pushed-down filters the way the index does.
type fakeRepo struct {
	mu    sync.Mutex
	calls []string

	vectorFn    func(req retrieval.Request) ([]candidate.Candidate, error)
	fullTextFn  func(text string, req retrieval.Request) ([]candidate.Candidate, error)
	filterFn    func(req retrieval.Request) ([]candidate.Candidate, error)
	aggregateFn func(req retrieval.Request) ([]retrieval.AggregateRow, error)
}

func (r *fakeRepo) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *fakeRepo) called(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (r *fakeRepo) VectorSearch(_ context.Context, _ []float32, req retrieval.Request) ([]candidate.Candidate, error) {
	r.record("vector")
	if r.vectorFn == nil {
		return nil, nil
	}
	return r.vectorFn(req)
}

func (r *fakeRepo) FullTextSearch(_ context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error) {
	r.record("full_text")
	if r.fullTextFn == nil {
		return nil, nil
	}
	return r.fullTextFn(text, req)
}

func (r *fakeRepo) TrigramSearch(context.Context, string, retrieval.Request) ([]candidate.Candidate, error) {
	r.record("fuzzy")
	return nil, nil
}

func (r *fakeRepo) KeywordSearch(context.Context, string, retrieval.Request) ([]candidate.Candidate, error) {
	r.record("keyword")
	return nil, nil
}

func (r *fakeRepo) FilterSearch(_ context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
	r.record("filter")
	if r.filterFn == nil {
		return nil, nil
	}
	return r.filterFn(req)
}

func (r *fakeRepo) SourceIDs(context.Context, retrieval.Request) ([]string, error) {
	r.record("source_ids")
	return nil, nil
}

func (r *fakeRepo) Aggregate(_ context.Context, _ string, req retrieval.Request) ([]retrieval.AggregateRow, error) {
	r.record("aggregate")
	if r.aggregateFn == nil {
		return nil, nil
	}
	return r.aggregateFn(req)
}

// pushedDown keeps the candidates an index would return under req's filters.
func pushedDown(req retrieval.Request, cands []candidate.Candidate) []candidate.Candidate {
	f := req.Filters
	var out []candidate.Candidate
	for _, c := range cands {
		if dr := f.Date(); !dr.IsZero() && !dr.Contains(c.EntityDate()) {
			continue
		}
		if a := f.Amount(); a.IsSet() {
			v, ok := c.Amount()
			if !ok || !a.Contains(v) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

type mockEmbedder struct {
	calls   int
	text    string
	embedFn func(text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.text = text
	if m.embedFn == nil {
		return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
	}
	return m.embedFn(text)
}

type mockLLM struct {
	completeFn func(prompt string) (domain.Completion, error)
}

func (m *mockLLM) Complete(_ context.Context, prompt string, _ domain.CompletionOptions) (domain.Completion, error) {
	return m.completeFn(prompt)
}

type fixture struct {
	repo     *fakeRepo
	embedder *mockEmbedder
	rerankLM *mockLLM
	preLM    *mockLLM
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: &fakeRepo{}, embedder: &mockEmbedder{}}
	f.rebuild()
	return f
}

// rebuild wires real stage implementations around the fakes.
func (f *fixture) rebuild() {
	log := zap.NewNop()
	var rr *reranker.Service
	if f.rerankLM != nil {
		rr = reranker.New(f.rerankLM, reranker.Config{Enabled: true}, log)
	} else {
		rr = reranker.New(nil, reranker.Config{}, log)
	}
	pre := preprocessor.New(nil, nil, preprocessor.Config{}, log)
	if f.preLM != nil {
		pre = preprocessor.New(f.preLM, nil, preprocessor.Config{}, log)
	}
	f.orch = New(Deps{
		Preprocessor: pre,
		Embedder:     f.embedder,
		Executor:     search.NewExecutor(f.repo, nil, search.Config{TierTimeout: time.Second}, log),
		Ranker:       ranker.New(nil, ranker.DefaultConfig(), log),
		ReRanker:     rr,
	}, Config{Router: router.DefaultConfig()}, log)
}

func newQuery(t *testing.T, p query.Params) query.Query {
	t.Helper()
	if p.Scope.IsZero() {
		p.Scope = domain.Scope{UserID: "u1"}
	}
	q, err := query.New(p)
	require.NoError(t, err)
	return q
}

func amountFilter(t *testing.T, minAmount float64) filter.Filters {
	t.Helper()
	a, err := filter.NewAmountRange(&minAmount, nil)
	require.NoError(t, err)
	return filter.Filters{}.WithAmount(a)
}

func daysAgo(n int) string {
	return filter.Day(time.Now()).AddDate(0, 0, -n).Format(time.DateOnly)
}

func receipt(id, title string, total float64, date string) candidate.Candidate {
	return candidate.Candidate{
		SourceType: "receipt", SourceID: id, ContentType: "receipt", Title: title,
		Metadata: map[string]any{
			candidate.MetaMerchant:   title,
			candidate.MetaTotal:      total,
			candidate.MetaEntityDate: date,
			candidate.MetaCurrency:   "MYR",
		},
		CreatedAt: time.Now().Add(-time.Hour),
	}
}
