package orchestrator

import (
	"context"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/domain/search/rerank"
	"github.com/noa10/mataresit-sub011/internal/usecase/ranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/search"
)

type queryPreprocessor interface {
	Preprocess(ctx context.Context, q query.Query) (preprocess.Result, bool)
}

type embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

type executor interface {
	Execute(ctx context.Context, in search.Input) (search.Outcome, error)
}

type scorer interface {
	Rank(ctx context.Context, cands []candidate.Candidate, in ranker.Input) []ranking.Result
}

type reRanker interface {
	ReRank(ctx context.Context, text string, in []ranking.Result) rerank.Outcome
}
