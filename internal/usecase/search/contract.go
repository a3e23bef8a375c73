package search

import (
	"context"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
)

// Repository is the datastore search contract.
type Repository interface {
	VectorSearch(ctx context.Context, vec []float32, req retrieval.Request) ([]candidate.Candidate, error)
	FullTextSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	TrigramSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	KeywordSearch(ctx context.Context, text string, req retrieval.Request) ([]candidate.Candidate, error)
	FilterSearch(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error)
	SourceIDs(ctx context.Context, req retrieval.Request) ([]string, error)
	Aggregate(ctx context.Context, groupBy string, req retrieval.Request) ([]retrieval.AggregateRow, error)
}

// ResultCache is the shared cache collaborator.
type ResultCache interface {
	Load(ctx context.Context, stage, key string, out any) bool
	Store(ctx context.Context, stage, key string, v any, ttl time.Duration)
}
