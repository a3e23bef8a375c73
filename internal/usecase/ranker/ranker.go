package ranker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Ranker scores and orders candidates.
type Ranker struct {
	pop    *Popularity
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Ranker. pop may be nil, in which case every popularity is the configured default.
func New(pop *Popularity, cfg Config, logger *zap.Logger) *Ranker {
	if cfg.ExactBoost <= 0 {
		cfg.ExactBoost = DefaultExactBoost
	}
	if cfg.RecencyLambda <= 0 {
		cfg.RecencyLambda = DefaultRecencyLambda
	}
	return &Ranker{pop: pop, cfg: cfg, now: time.Now, logger: logger}
}

// Input carries the per-query ranking parameters.
type Input struct {
	Query query.Query
	// Phrases are compared against titles and merchants for the exact-match boost.
	Phrases []string
}

// Rank scores every candidate and orders them by the query's diversity mode.
func (r *Ranker) Rank(ctx context.Context, cands []candidate.Candidate, in Input) []ranking.Result {
	if len(cands) == 0 {
		return []ranking.Result{}
	}

	var pops []float64
	if r.pop != nil {
		pops = r.pop.Scores(ctx, in.Query.Scope(), cands)
	}

	now := r.now()
	weights := in.Query.Weights()
	results := make([]ranking.Result, len(cands))
	for i := range cands {
		pop := r.cfg.DefaultPopularity
		if pops != nil {
			pop = pops[i]
		}
		c := cands[i]
		c.Normalize()
		results[i] = ranking.Result{
			Candidate: c,
			Score:     Score(&c, weights, pop, IsExactMatch(&c, in.Phrases), now, r.cfg),
		}
	}

	return Order(results, in.Query.DiversityMode(), in.Query.Offset()+in.Query.Limit())
}
