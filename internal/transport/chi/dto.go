package chi

import (
	"fmt"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/pipeline"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/pkg/api"
)

// Defaults fill request fields the caller omitted.
type Defaults struct {
	Weights       ranking.Weights
	DiversityMode ranking.DiversityMode
	Threshold     *float64
}

// QueryFromAPI validates a request body into a Query. Errors wrap domain.ErrInvalidQuery.
func QueryFromAPI(req *api.SearchRequest, scope domain.Scope, def Defaults) (query.Query, error) {
	f, err := filtersFromAPI(req.Filters)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	p := query.Params{
		Text:          req.Query,
		Scope:         scope,
		Filters:       f,
		Limit:         derefInt(req.Limit),
		Offset:        derefInt(req.Offset),
		Threshold:     req.SimilarityThreshold,
		DiversityMode: def.DiversityMode,
		Weights:       def.Weights,
		History:       historyFromAPI(req.ConversationHistory),
	}
	if p.Threshold == nil {
		p.Threshold = def.Threshold
	}
	if req.DiversityMode != nil {
		p.DiversityMode = ranking.DiversityMode(*req.DiversityMode)
	}
	if req.Weights != nil {
		p.Weights = ranking.Weights{
			Vector:     req.Weights.Vector,
			FullText:   req.Weights.FullText,
			Recency:    req.Weights.Recency,
			Popularity: req.Weights.Popularity,
		}
	}
	if req.UserProfile != nil {
		p.Profile = preprocess.Profile{Currency: req.UserProfile.Currency, Locale: req.UserProfile.Locale}
	}

	q, err := query.New(p)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return q, nil
}

func filtersFromAPI(in *api.SearchFilters) (filter.Filters, error) {
	if in == nil {
		return filter.Filters{}, nil
	}

	var date filter.DateRange
	if in.DateFrom != nil || in.DateTo != nil {
		var from, to time.Time
		if in.DateFrom != nil {
			from = in.DateFrom.Time
		}
		if in.DateTo != nil {
			to = in.DateTo.Time
		}
		r, err := filter.NewDateRange(from, to)
		if err != nil {
			return filter.Filters{}, fmt.Errorf("date range: %w", err)
		}
		date = r
	}

	amount, err := filter.NewAmountRange(in.AmountMin, in.AmountMax)
	if err != nil {
		return filter.Filters{}, fmt.Errorf("amount range: %w", err)
	}

	f, err := filter.New(date, amount, in.Statuses, in.SourceTypes)
	if err != nil {
		return filter.Filters{}, fmt.Errorf("filters: %w", err)
	}
	return f, nil
}

func historyFromAPI(in []api.HistoryTurn) []preprocess.HistoryTurn {
	if len(in) == 0 {
		return nil
	}
	out := make([]preprocess.HistoryTurn, len(in))
	for i, t := range in {
		out[i] = preprocess.HistoryTurn{Role: t.Role, Content: t.Content}
	}
	return out
}

// ResponseToAPI renders a pipeline response in wire form.
func ResponseToAPI(resp *pipeline.Response) api.SearchResponse {
	items := make([]api.SearchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToAPI(&resp.Results[i])
	}

	descriptors := make([]api.Descriptor, len(resp.Answer.Descriptors))
	for i, d := range resp.Answer.Descriptors {
		descriptors[i] = api.Descriptor{Kind: d.Kind, SourceID: d.SourceID, Title: d.Title, Fields: d.Fields}
	}

	fallbacks := make([]string, len(resp.Meta.FallbacksUsed))
	for i, m := range resp.Meta.FallbacksUsed {
		fallbacks[i] = string(m)
	}
	hits := make([]string, len(resp.Meta.CacheHits))
	for i, s := range resp.Meta.CacheHits {
		hits[i] = string(s)
	}
	timings := make(map[string]float64, len(resp.Meta.Timings))
	for s, d := range resp.Meta.Timings {
		timings[string(s)] = millis(d)
	}
	sources := resp.Meta.SourcesSearched
	if sources == nil {
		sources = []string{}
	}

	return api.SearchResponse{
		PipelineID: resp.PipelineID,
		Success:    resp.Success,
		Total:      resp.Total,
		Results:    items,
		Answer:     api.Answer{Text: resp.Answer.Text, Descriptors: descriptors},
		Metadata: api.SearchMetadata{
			Method:          string(resp.Method),
			Strategy:        string(resp.Strategy),
			FallbackUsed:    resp.FallbackUsed,
			FallbacksUsed:   fallbacks,
			ThresholdBypass: resp.ThresholdBypass,
			Confidence:      string(resp.Confidence),
			RerankModel:     resp.RerankModel,
			Intent:          string(resp.Intent),
			ExpandedQuery:   resp.Preprocess.ExpandedQuery,
			SourcesSearched: sources,
			CacheHits:       hits,
			Warnings:        resp.Meta.Warnings,
			TimingsMs:       timings,
			DurationMs:      millis(resp.Duration),
		},
	}
}

func resultToAPI(r *ranking.Result) api.SearchResultItem {
	c := &r.Candidate
	item := api.SearchResultItem{
		Position:    r.Position,
		SourceType:  c.SourceType,
		SourceID:    c.SourceID,
		ContentType: c.ContentType,
		Title:       c.Title,
		Description: c.Description,
		Similarity:  c.Similarity,
		Metadata:    c.Metadata,
		AccessLevel: c.AccessLevel,
		Score: api.Score{
			Vector:     r.Score.Vector,
			FullText:   r.Score.FullText,
			Recency:    r.Score.Recency,
			Popularity: r.Score.Popularity,
			Combined:   r.Score.Combined,
			ExactMatch: r.Score.ExactMatch,
		},
	}
	if !c.CreatedAt.IsZero() {
		item.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
