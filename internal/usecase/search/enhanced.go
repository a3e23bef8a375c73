package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
)

// enhanced is the combined-scoring tier: vector and full-text hits fetched in
// parallel and fused with RRF. It fails when either primitive fails.
func (e *Executor) enhanced(
	vec []float32, text string,
) func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
	return func(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
		var byVector, byText []candidate.Candidate

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			byVector, err = e.repo.VectorSearch(gctx, vec, req)
			return err
		})
		g.Go(func() error {
			var err error
			byText, err = e.repo.FullTextSearch(gctx, text, req)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("enhanced hybrid: %w", err)
		}

		return fuseRRF(byVector, byText, req.Limit), nil
	}
}
