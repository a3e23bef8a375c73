package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
	"github.com/noa10/mataresit-sub011/internal/metrics"
	"github.com/noa10/mataresit-sub011/internal/repository/cache"
)

// AggregateStage labels aggregation entries in the shared cache.
const AggregateStage = "aggregation"

// AnalysisSourceType marks synthetic candidates built from aggregation rows.
const AnalysisSourceType = "analysis"

// aggregate answers financial-analysis queries with grouped totals instead of documents.
func (e *Executor) aggregate(ctx context.Context, in Input, req retrieval.Request) (Outcome, error) {
	out := Outcome{Method: route.Aggregation, Attempted: []route.Method{route.Aggregation}}

	key := cache.Key(aggregateCacheText(in, e.cfg.AggregateGroupBy), in.Query.Scope(), AggregateStage)
	var rows []retrieval.AggregateRow
	if e.cache != nil && e.cache.Load(ctx, AggregateStage, key, &rows) {
		out.CacheHit = true
	} else {
		var err error
		rows, err = withTimeout(ctx, e.cfg.TierTimeout, func(ctx context.Context) ([]retrieval.AggregateRow, error) {
			return e.repo.Aggregate(ctx, e.cfg.AggregateGroupBy, req)
		})
		if err != nil {
			return e.recover(ctx, in, req, out, route.Aggregation, err)
		}
		if e.cache != nil {
			e.cache.Store(ctx, AggregateStage, key, rows, e.cfg.AggregateTTL)
		}
	}

	metrics.SearchTierTotal.WithLabelValues(string(route.Aggregation), statusRows(rows)).Inc()
	out.Aggregates = rows
	out.Candidates = Synthesize(rows, e.cfg.AggregateGroupBy)
	return out, nil
}

// Synthesize turns aggregation rows into analysis candidates whose similarity
// strictly decreases with rank, so later stages preserve the aggregate order.
func Synthesize(rows []retrieval.AggregateRow, groupBy string) []candidate.Candidate {
	n := len(rows)
	out := make([]candidate.Candidate, 0, n)
	for i, r := range rows {
		sim := 1 - float64(i)/float64(n+1)
		out = append(out, candidate.Candidate{
			SourceType:  AnalysisSourceType,
			SourceID:    groupBy + ":" + r.Group + ":" + strings.ToLower(r.Currency),
			ContentType: "aggregate",
			Title:       r.Group,
			Description: fmt.Sprintf("%d records totalling %s %s", r.Count, strconv.FormatFloat(r.Total, 'f', 2, 64), r.Currency),
			Similarity:  sim,
			Metadata: map[string]any{
				candidate.MetaTotal:    r.Total,
				candidate.MetaCurrency: r.Currency,
				candidate.MetaCategory: r.Group,
				"count":                r.Count,
			},
		})
	}
	return out
}

// aggregateCacheText identifies an aggregation by its query text and pushed-down filters.
func aggregateCacheText(in Input, groupBy string) string {
	f := in.Decision.PushDown()
	parts := []string{in.Query.Normalized(), groupBy, f.Date().String()}
	if a := f.Amount(); a.IsSet() {
		parts = append(parts, fmtBound(a.Min()), fmtBound(a.Max()))
	}
	parts = append(parts, strings.Join(f.Statuses(), ","), strings.Join(f.SourceTypes(), ","))
	return strings.Join(parts, "\x00")
}

func fmtBound(v *float64) string {
	if v == nil {
		return "*"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func statusRows(rows []retrieval.AggregateRow) string {
	if len(rows) == 0 {
		return "empty"
	}
	return "hit"
}
