// Package orchestrator runs the six-stage search pipeline for one request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/pipeline"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/domain/search/rerank"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
	"github.com/noa10/mataresit-sub011/internal/logger"
	"github.com/noa10/mataresit-sub011/internal/metrics"
	"github.com/noa10/mataresit-sub011/internal/usecase/answer"
	"github.com/noa10/mataresit-sub011/internal/usecase/compiler"
	"github.com/noa10/mataresit-sub011/internal/usecase/ranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/router"
	"github.com/noa10/mataresit-sub011/internal/usecase/search"
)

// Stage status labels.
const (
	statusOK       = "ok"
	statusSkipped  = "skipped"
	statusDegraded = "degraded"
	statusFailed   = "failed"
)

// Request outcome labels.
const (
	outcomeSuccess   = "success"
	outcomeNoResults = "no_results"
	outcomeFailed    = "failed"
)

// Timeouts bound each stage. Zero means no stage-level bound.
type Timeouts struct {
	Preprocessing time.Duration
	Embedding     time.Duration
	Search        time.Duration
	Ranking       time.Duration
	ReRanking     time.Duration
}

func (t Timeouts) of(s pipeline.Stage) time.Duration {
	switch s {
	case pipeline.StagePreprocessing:
		return t.Preprocessing
	case pipeline.StageEmbedding:
		return t.Embedding
	case pipeline.StageSearch:
		return t.Search
	case pipeline.StageRanking:
		return t.Ranking
	case pipeline.StageReRanking:
		return t.ReRanking
	}
	return 0
}

// Config tunes the orchestrator.
type Config struct {
	Router   router.Config
	Timeouts Timeouts
}

// Deps are the stage implementations.
type Deps struct {
	Preprocessor queryPreprocessor
	Embedder     embedder
	Executor     executor
	Ranker       scorer
	ReRanker     reRanker
}

// Orchestrator owns the stage sequence and the failure policy between stages.
// Preprocessing, search, ranking and embedding may fail the run; re-ranking and
// compilation always pass through.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{deps: deps, cfg: cfg, now: time.Now, logger: logger}
}

// Search runs the pipeline for q. A failure returns a *domain.StageError naming the stage.
// An empty result set is not an error: the response has Success=false.
func (o *Orchestrator) Search(ctx context.Context, q query.Query) (pipeline.Response, error) {
	pc := pipeline.NewContext(q, o.now())
	ctx = logger.WithFields(ctx, o.logger, zap.String("pipeline_id", pc.ID))
	log := logger.FromContextOr(ctx, o.logger)

	resp, err := o.run(ctx, pc)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Error("Search pipeline failed",
			zap.String("stage", domain.FailedStage(err)),
			zap.Duration("duration", time.Since(pc.StartedAt)),
			zap.Error(err))
		return pipeline.Response{}, err
	}

	outcome := outcomeSuccess
	if !resp.Success {
		outcome = outcomeNoResults
	}
	metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	log.Info("Search pipeline completed",
		zap.String("strategy", string(resp.Strategy)),
		zap.String("method", string(resp.Method)),
		zap.Int("results", len(resp.Results)),
		zap.Int("total", resp.Total),
		zap.Bool("fallback", resp.FallbackUsed),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, pc *pipeline.Context) (pipeline.Response, error) {
	q := pc.Query

	if err := o.stage(ctx, pc, pipeline.StagePreprocessing, func(sctx context.Context) (string, error) {
		// a stage timeout only degrades classification; caller cancellation ends the run
		pre, cached := o.deps.Preprocessor.Preprocess(sctx, q)
		if err := alive(ctx); err != nil {
			return "", err
		}
		pc.Preprocess = pre
		if cached {
			pc.CacheHit(pipeline.StagePreprocessing)
		}
		if pre.Degraded && q.Text() != "" {
			pc.Warn("preprocessing used default classification")
			return statusDegraded, nil
		}
		return statusOK, nil
	}); err != nil {
		return pipeline.Response{}, err
	}

	// Routing is pure; the decision is fixed for the run once the search stage records it.
	decision := router.Route(pc.Preprocess, q, o.cfg.Router)
	text := router.SearchText(pc.Preprocess, q, decision)

	if err := o.stage(ctx, pc, pipeline.StageEmbedding, func(ctx context.Context) (string, error) {
		if q.Text() == "" || !router.UsesVector(decision) {
			return statusSkipped, nil
		}
		res, err := o.deps.Embedder.Embed(ctx, text)
		if err != nil {
			return "", err
		}
		pc.Vector = res.Embedding
		if res.Padded {
			pc.Warn("query embedding was zero-padded")
		}
		return statusOK, nil
	}); err != nil {
		return pipeline.Response{}, err
	}

	var out search.Outcome
	if err := o.stage(ctx, pc, pipeline.StageSearch, func(ctx context.Context) (string, error) {
		if err := pc.SetDecision(decision); err != nil {
			return "", err
		}
		var err error
		out, err = o.deps.Executor.Execute(ctx, search.Input{
			Decision: decision, Query: q, Text: text, Vector: pc.Vector,
		})
		if err != nil {
			return "", err
		}
		pc.Candidates = out.Candidates
		pc.Meta.Method = out.Method
		pc.Meta.FallbacksUsed = out.Fallbacks
		pc.Meta.SourcesSearched = sourcesSearched(q, out)
		if out.CacheHit {
			pc.CacheHit(pipeline.StageSearch)
		}
		if len(out.Fallbacks) > 0 {
			return statusDegraded, nil
		}
		return statusOK, nil
	}); err != nil {
		return pipeline.Response{}, err
	}

	// Only synthesized analysis rows bypass scoring; documents from a failed-over
	// aggregation are ranked like any other search.
	aggregated := out.Method == route.Aggregation

	if err := o.stage(ctx, pc, pipeline.StageRanking, func(ctx context.Context) (string, error) {
		if err := alive(ctx); err != nil {
			return "", err
		}
		if aggregated {
			pc.Ranked = inOrder(pc.Candidates)
			return statusSkipped, nil
		}
		pc.Ranked = o.deps.Ranker.Rank(ctx, pc.Candidates, ranker.Input{
			Query:   q,
			Phrases: exactPhrases(pc),
		})
		return statusOK, nil
	}); err != nil {
		return pipeline.Response{}, err
	}

	// Re-ranking and compilation never fail the run.
	_ = o.stage(ctx, pc, pipeline.StageReRanking, func(ctx context.Context) (string, error) {
		// Recency and diversity orderings are final; a relevance re-rank would undo them.
		if aggregated || o.deps.ReRanker == nil || q.DiversityMode() != ranking.Relevance {
			pc.ReRank = rerank.Outcome{Results: pc.Ranked, Confidence: rerank.Low, Model: rerank.ModelSkipped}
			return statusSkipped, nil
		}
		pc.ReRank = o.deps.ReRanker.ReRank(ctx, q.Text(), pc.Ranked)
		switch {
		case pc.ReRank.Model == rerank.ModelFallback:
			pc.Warn("re-ranking fell back to ranked order")
			return statusDegraded, nil
		case !pc.ReRank.Applied:
			return statusSkipped, nil
		}
		return statusOK, nil
	})

	var page compiler.Page
	_ = o.stage(ctx, pc, pipeline.StageCompilation, func(context.Context) (string, error) {
		f := router.EffectiveFilters(pc.Preprocess, q)
		if aggregated {
			f = filter.Filters{}
		}
		page = compiler.Compile(pc.ReRank.Results, f, q.Offset(), q.Limit())
		pc.Final = page.Results
		pc.Total = page.Total
		return statusOK, nil
	})

	return pipeline.Response{
		PipelineID:      pc.ID,
		Results:         pc.Final,
		Total:           pc.Total,
		Success:         len(pc.Final) > 0,
		Method:          pc.Meta.Method,
		Strategy:        decision.Strategy(),
		FallbackUsed:    pc.FallbackUsed(),
		ThresholdBypass: decision.ThresholdBypass(),
		Confidence:      pc.ReRank.Confidence,
		RerankModel:     pc.ReRank.Model,
		Intent:          pc.Preprocess.Intent,
		Preprocess:      pc.Preprocess,
		Meta:            pc.Meta,
		Answer:          answer.Assemble(pc.Preprocess.Intent, q.Text(), pc.Final, pc.Total),
		Duration:        time.Since(pc.StartedAt),
	}, nil
}

// stage runs fn under the stage timeout, records its timing and wraps any failure.
func (o *Orchestrator) stage(
	ctx context.Context, pc *pipeline.Context, s pipeline.Stage, fn func(context.Context) (string, error),
) error {
	sctx := ctx
	if d := o.cfg.Timeouts.of(s); d > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	status, err := fn(sctx)
	elapsed := time.Since(start)
	pc.Record(s, elapsed)
	if err != nil {
		status = statusFailed
	}
	metrics.StageDuration.WithLabelValues(string(s), status).Observe(elapsed.Seconds())
	if err != nil {
		return domain.NewStageError(string(s), err)
	}
	logger.FromContextOr(ctx, o.logger).Debug("Stage completed",
		zap.String("stage", string(s)), zap.String("status", status), zap.Duration("duration", elapsed))
	return nil
}

// alive fails once the stage context is done.
func alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("stage timed out: %w", err)
		}
		return fmt.Errorf("cancelled: %w", err)
	}
	return nil
}

// exactPhrases are compared against titles and merchants for the exact-match boost.
func exactPhrases(pc *pipeline.Context) []string {
	phrases := []string{pc.Query.Text()}
	for _, m := range pc.Preprocess.Entities.Merchants {
		if m = strings.TrimSpace(m); m != "" && !slices.Contains(phrases, m) {
			phrases = append(phrases, m)
		}
	}
	return phrases
}

// inOrder keeps the executor's order; used where per-document scoring does not apply.
func inOrder(cands []candidate.Candidate) []ranking.Result {
	out := make([]ranking.Result, len(cands))
	for i := range cands {
		c := cands[i]
		c.Normalize()
		out[i] = ranking.Result{
			Candidate: c,
			Score:     ranking.Score{Vector: c.Similarity, Combined: c.Similarity},
			Position:  i + 1,
		}
	}
	return out
}

func sourcesSearched(q query.Query, out search.Outcome) []string {
	if st := q.Filters().SourceTypes(); len(st) > 0 {
		return slices.Clone(st)
	}
	var seen []string
	for i := range out.Candidates {
		if st := out.Candidates[i].SourceType; !slices.Contains(seen, st) {
			seen = append(seen, st)
		}
	}
	return seen
}
