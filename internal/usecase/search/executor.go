// Package search executes the routed retrieval path and its fallback chain.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
	"github.com/noa10/mataresit-sub011/internal/logger"
	"github.com/noa10/mataresit-sub011/internal/metrics"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

// Defaults.
const (
	DefaultOverFetchMin = 50
	DefaultTierTimeout  = 3 * time.Second
	maxScopedIDs        = 1000
)

// Config tunes the executor.
type Config struct {
	OverFetchMin int
	TierTimeout  time.Duration
	AggregateTTL time.Duration
	// AggregateGroupBy is the index field financial aggregation groups by.
	AggregateGroupBy string
}

// Input is everything one search-stage run needs.
type Input struct {
	Decision route.Decision
	Query    query.Query
	// Text feeds the lexical primitives; it may differ from the raw query (expansion).
	Text string
	// Vector is nil when the embedding stage was skipped.
	Vector []float32
}

// Outcome is the search-stage result. Candidates may be empty: no results is not an error.
type Outcome struct {
	Candidates []candidate.Candidate
	Method     route.Method
	// Attempted lists every method tried, in order.
	Attempted []route.Method
	// Fallbacks lists the methods tried after the path's primary one.
	Fallbacks  []route.Method
	Aggregates []retrieval.AggregateRow
	CacheHit   bool
}

// Executor runs the routed search path. Tier failures advance the chain; only
// cancellation of the caller's context surfaces as an error.
type Executor struct {
	repo   Repository
	cache  ResultCache
	cfg    Config
	logger *zap.Logger
}

// NewExecutor creates an Executor. cache may be nil.
func NewExecutor(repo Repository, cache ResultCache, cfg Config, logger *zap.Logger) *Executor {
	if cfg.OverFetchMin <= 0 {
		cfg.OverFetchMin = DefaultOverFetchMin
	}
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = DefaultTierTimeout
	}
	if cfg.AggregateGroupBy == "" {
		cfg.AggregateGroupBy = schema.FieldCategory
	}
	return &Executor{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

// Execute runs the path chosen by in.Decision.
func (e *Executor) Execute(ctx context.Context, in Input) (Outcome, error) {
	req := retrieval.Request{
		Scope:   in.Query.Scope(),
		Filters: in.Decision.PushDown(),
		Limit:   max(in.Query.CandidateBudget(e.cfg.OverFetchMin), in.Query.Offset()+in.Query.Limit()),
	}

	var out Outcome
	var err error
	switch in.Decision.Strategy() {
	case route.FinancialAggregation:
		out, err = e.aggregate(ctx, in, req)
	case route.TemporalFilterOnly:
		out, err = e.filterOnly(ctx, in, req)
	case route.HybridTemporalSemantic:
		out, err = e.temporalHybrid(ctx, in, req)
	default:
		out, err = e.runChain(ctx, e.generalChain(in), req, in.Decision.Thresholds())
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// strategy is one tier of the fallback chain.
type strategy struct {
	method route.Method
	search func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error)
}

// generalChain is enhanced hybrid, then vector, full-text, fuzzy, keyword.
// Vector tiers are left out when there is no query vector.
func (e *Executor) generalChain(in Input) []strategy {
	chain := make([]strategy, 0, 5)
	if len(in.Vector) > 0 {
		chain = append(chain,
			strategy{route.EnhancedHybrid, e.enhanced(in.Vector, in.Text)},
			strategy{route.Vector, func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
				return e.repo.VectorSearch(ctx, in.Vector, req)
			}},
		)
	}
	return append(chain, e.lexicalChain(in.Text)...)
}

func (e *Executor) lexicalChain(text string) []strategy {
	return []strategy{
		{route.FullText, func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
			return e.repo.FullTextSearch(ctx, text, req)
		}},
		{route.Fuzzy, func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
			return e.repo.TrigramSearch(ctx, text, req)
		}},
		{route.Keyword, func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
			return e.repo.KeywordSearch(ctx, text, req)
		}},
	}
}

// runChain tries each tier in order and stops at the first non-empty, gated result.
// Exhausting the chain yields a well-formed empty outcome tagged with the last tier.
func (e *Executor) runChain(
	ctx context.Context, chain []strategy, req retrieval.Request, th route.Thresholds,
) (Outcome, error) {
	log := logger.FromContextOr(ctx, e.logger)
	var out Outcome
	for i, s := range chain {
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("search %s: %w", s.method, err)
		}
		out.Attempted = append(out.Attempted, s.method)
		if i > 0 {
			out.Fallbacks = append(out.Fallbacks, s.method)
		}

		cands, err := e.runTier(ctx, s, req)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, fmt.Errorf("search %s: %w", s.method, ctx.Err())
			}
			metrics.SearchTierTotal.WithLabelValues(string(s.method), "error").Inc()
			log.Warn("Search tier failed, advancing fallback chain",
				zap.String("method", string(s.method)), zap.Error(err))
			continue
		}

		cands = gate(cands, th)
		if len(cands) == 0 {
			metrics.SearchTierTotal.WithLabelValues(string(s.method), "empty").Inc()
			continue
		}
		metrics.SearchTierTotal.WithLabelValues(string(s.method), "hit").Inc()
		out.Candidates = cands
		out.Method = s.method
		return out, nil
	}

	out.Method = route.None
	if len(chain) > 0 {
		out.Method = chain[len(chain)-1].method
	}
	out.Candidates = []candidate.Candidate{}
	return out, nil
}

func (e *Executor) runTier(ctx context.Context, s strategy, req retrieval.Request) ([]candidate.Candidate, error) {
	cands, err := withTimeout(ctx, e.cfg.TierTimeout, func(ctx context.Context) ([]candidate.Candidate, error) {
		return s.search(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s tier: %w", s.method, err)
	}
	return cands, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}

// gate clamps scores, collapses duplicates and drops candidates that fail the
// similarity thresholds. Lexical hits always pass; with zero thresholds nothing is dropped.
func gate(in []candidate.Candidate, th route.Thresholds) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(in))
	for _, c := range in {
		c.Normalize()
		if admit(&c, th) {
			out = append(out, c)
		}
	}
	return candidate.Dedupe(out)
}

func admit(c *candidate.Candidate, th route.Thresholds) bool {
	s := c.Signals
	switch {
	case s.FullText > 0 || s.Keyword > 0:
		return true
	case s.Fuzzy > 0 && s.Fuzzy >= th.Trigram:
		return true
	case s.Max() == 0 && c.Similarity > 0 && c.Similarity >= th.Vector:
		// filter-only and synthetic hits carry no per-signal score
		return true
	}
	return s.Vector >= th.Vector && (s.Vector > 0 || th.Vector == 0)
}

// filterOnly lists everything inside the pushed-down filters with similarity 1.0.
func (e *Executor) filterOnly(ctx context.Context, in Input, req retrieval.Request) (Outcome, error) {
	out := Outcome{Method: route.DateFilter, Attempted: []route.Method{route.DateFilter}}
	cands, err := e.runTier(ctx, strategy{route.DateFilter, e.repo.FilterSearch}, req)
	if err == nil {
		metrics.SearchTierTotal.WithLabelValues(string(route.DateFilter), status(cands)).Inc()
		out.Candidates = candidate.Dedupe(normalizeAll(cands))
		return out, nil
	}
	return e.recover(ctx, in, req, out, route.DateFilter, err)
}

// temporalHybrid narrows to the IDs inside the date range, then ranks that set semantically.
// When nothing semantic survives it degrades to the lexical chain within the same range.
func (e *Executor) temporalHybrid(ctx context.Context, in Input, req retrieval.Request) (Outcome, error) {
	out := Outcome{Method: route.TemporalHybrid, Attempted: []route.Method{route.TemporalHybrid}}
	idReq := req
	idReq.Limit = maxScopedIDs
	ids, err := withTimeout(ctx, e.cfg.TierTimeout, func(ctx context.Context) ([]string, error) {
		return e.repo.SourceIDs(ctx, idReq)
	})
	if err != nil {
		return e.recover(ctx, in, req, out, route.TemporalHybrid, err)
	}
	if len(ids) == 0 {
		metrics.SearchTierTotal.WithLabelValues(string(route.TemporalHybrid), "empty").Inc()
		out.Candidates = []candidate.Candidate{}
		return out, nil
	}

	scoped := req
	scoped.Filters = req.Filters.WithIDs(ids)
	text := joinTerms(in.Decision.SemanticTerms(), in.Text)

	if len(in.Vector) > 0 {
		cands, err := e.runTier(ctx, strategy{route.Vector, func(ctx context.Context, r retrieval.Request) ([]candidate.Candidate, error) {
			return e.repo.VectorSearch(ctx, in.Vector, r)
		}}, scoped)
		if err == nil {
			cands = gate(cands, in.Decision.Thresholds())
			if len(cands) > 0 {
				metrics.SearchTierTotal.WithLabelValues(string(route.TemporalHybrid), "hit").Inc()
				out.Candidates = cands
				return out, nil
			}
			metrics.SearchTierTotal.WithLabelValues(string(route.TemporalHybrid), "empty").Inc()
		} else if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("temporal hybrid: %w", ctx.Err())
		} else {
			metrics.SearchTierTotal.WithLabelValues(string(route.TemporalHybrid), "error").Inc()
			logger.FromContextOr(ctx, e.logger).Warn("Scoped vector search failed", zap.Error(err))
		}
	}

	chained, err := e.runChain(ctx, e.lexicalChain(text), scoped, in.Decision.Thresholds())
	if err != nil {
		return Outcome{}, err
	}
	return merge(out, chained), nil
}

// recover hands a failed specialised path over to the general chain.
func (e *Executor) recover(
	ctx context.Context, in Input, req retrieval.Request, out Outcome, method route.Method, cause error,
) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, fmt.Errorf("%s: %w", method, ctx.Err())
	}
	metrics.SearchTierTotal.WithLabelValues(string(method), "error").Inc()
	logger.FromContextOr(ctx, e.logger).Warn("Search path failed, falling back to general chain",
		zap.String("method", string(method)), zap.Error(cause))

	chained, err := e.runChain(ctx, e.generalChain(in), req, in.Decision.Thresholds())
	if err != nil {
		return Outcome{}, err
	}
	return merge(out, chained), nil
}

// merge appends a fallback chain's outcome to the path that handed over to it.
func merge(head, chained Outcome) Outcome {
	head.Attempted = append(head.Attempted, chained.Attempted...)
	head.Fallbacks = append(head.Fallbacks, chained.Attempted...)
	head.Candidates = chained.Candidates
	head.Method = chained.Method
	return head
}

func normalizeAll(in []candidate.Candidate) []candidate.Candidate {
	for i := range in {
		in[i].Normalize()
	}
	return in
}

func status(cands []candidate.Candidate) string {
	if len(cands) == 0 {
		return "empty"
	}
	return "hit"
}

func joinTerms(terms []string, fallback string) string {
	if len(terms) == 0 {
		return fallback
	}
	return strings.Join(terms, " ")
}
