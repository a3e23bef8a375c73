package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/retrieval"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

// maxScopedIDs bounds the ID set pushed into a scoped vector search.
const maxScopedIDs = 1000

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

// Repo implements the datastore search primitives over one FT index.
type Repo struct {
	store store
	index string
}

// New creates a search repository for the named index.
func New(s store, indexName string) *Repo {
	return &Repo{store: s, index: schema.IndexName(indexName)}
}

// VectorSearch returns KNN hits with cosine similarity in Signals.Vector.
func (r *Repo) VectorSearch(
	ctx context.Context, vec []float32, req retrieval.Request,
) ([]candidate.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		VectorField:  schema.FieldEmbedding,
		Filter:       schema.Filter(req.Scope, req.Filters),
		Vector:       vec,
		K:            req.Limit,
		ReturnFields: schema.ReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return toCandidates(sr, func(c *candidate.Candidate, score float64) {
		c.Signals.Vector = score
		c.Similarity = score
	}), nil
}

// FullTextSearch returns BM25-ranked hits, normalized by the best score into Signals.FullText.
func (r *Repo) FullTextSearch(
	ctx context.Context, text string, req retrieval.Request,
) ([]candidate.Candidate, error) {
	terms := Tokenize(text)
	if len(terms) == 0 {
		return nil, nil
	}
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Query:        fieldQuery(schema.TextFields, escapeAll(terms), " | "),
		Filter:       schema.Filter(req.Scope, req.Filters),
		Limit:        req.Limit,
		ReturnFields: schema.ReturnFields,
		WithScores:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	best := maxScore(sr)
	return toCandidates(sr, func(c *candidate.Candidate, score float64) {
		if best > 0 {
			score /= best
		}
		c.Signals.FullText = score
		c.Similarity = score
	}), nil
}

// TrigramSearch finds fuzzy matches and scores them with trigram similarity
// between the query and the best of title, merchant and description.
func (r *Repo) TrigramSearch(
	ctx context.Context, text string, req retrieval.Request,
) ([]candidate.Candidate, error) {
	terms := Tokenize(text)
	fuzzy := make([]string, 0, len(terms))
	for _, t := range terms {
		if len([]rune(t)) >= 3 {
			fuzzy = append(fuzzy, "%"+db.EscapeQuery(t)+"%")
		}
	}
	if len(fuzzy) == 0 {
		return nil, nil
	}
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Query:        fieldQuery([]string{schema.FieldTitle, schema.FieldMerchant, schema.FieldDescription}, fuzzy, " | "),
		Filter:       schema.Filter(req.Scope, req.Filters),
		Limit:        req.Limit,
		ReturnFields: schema.ReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("trigram search: %w", err)
	}
	q := strings.Join(terms, " ")
	return toCandidates(sr, func(c *candidate.Candidate, _ float64) {
		sim := max(
			TrigramSimilarity(q, c.Title),
			TrigramSimilarity(q, c.Merchant()),
			TrigramSimilarity(q, c.Description),
		)
		c.Signals.Fuzzy = sim
		c.Similarity = sim
	}), nil
}

// KeywordSearch returns exact and prefix matches. Exact title or merchant equality scores 1.0,
// whole-phrase containment 0.8, any other term match 0.6.
func (r *Repo) KeywordSearch(
	ctx context.Context, text string, req retrieval.Request,
) ([]candidate.Candidate, error) {
	terms := Tokenize(text)
	if len(terms) == 0 {
		return nil, nil
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = db.EscapeQuery(t)
		if len([]rune(t)) >= 2 {
			parts[i] += "*"
		}
	}
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Query:        fieldQuery(schema.TextFields, parts, " "),
		Filter:       schema.Filter(req.Scope, req.Filters),
		Limit:        req.Limit,
		ReturnFields: schema.ReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	phrase := strings.Join(terms, " ")
	return toCandidates(sr, func(c *candidate.Candidate, _ float64) {
		score := keywordScore(phrase, c)
		c.Signals.Keyword = score
		c.Similarity = score
	}), nil
}

// FilterSearch lists documents matching the pushed-down filters, newest entity date first.
// A pure filter match has no notion of relevance, so similarity is fixed at 1.0.
func (r *Repo) FilterSearch(ctx context.Context, req retrieval.Request) ([]candidate.Candidate, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Filter:       schema.Filter(req.Scope, req.Filters),
		Limit:        req.Limit,
		ReturnFields: schema.ReturnFields,
		SortBy:       schema.FieldEntityDate,
		SortDesc:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("filter search: %w", err)
	}
	return toCandidates(sr, func(c *candidate.Candidate, _ float64) {
		c.Similarity = 1.0
	}), nil
}

// SourceIDs returns the source IDs matching the pushed-down filters.
func (r *Repo) SourceIDs(ctx context.Context, req retrieval.Request) ([]string, error) {
	limit := min(max(req.Limit, 1), maxScopedIDs)
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Filter:       schema.Filter(req.Scope, req.Filters),
		Limit:        limit,
		ReturnFields: []string{schema.FieldSourceID},
		SortBy:       schema.FieldEntityDate,
		SortDesc:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("source ids: %w", err)
	}
	ids := make([]string, 0, len(sr.Entries))
	seen := make(map[string]struct{}, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[schema.FieldSourceID]
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Aggregate groups matching documents by field, returning count and summed total per group
// ordered by total descending.
func (r *Repo) Aggregate(
	ctx context.Context, groupBy string, req retrieval.Request,
) ([]retrieval.AggregateRow, error) {
	res, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.index,
		Filter:    schema.Filter(req.Scope, req.Filters),
		GroupBy:   []string{groupBy, schema.FieldCurrency},
		Reducers: []db.Reducer{
			{Func: "COUNT", As: "count"},
			{Func: "SUM", Field: schema.FieldTotal, As: "sum_total"},
		},
		SortBy:   "sum_total",
		SortDesc: true,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", groupBy, err)
	}
	rows := make([]retrieval.AggregateRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		group := row[groupBy]
		if group == "" {
			continue
		}
		count, _ := strconv.Atoi(row["count"])
		total, _ := strconv.ParseFloat(row["sum_total"], 64)
		rows = append(rows, retrieval.AggregateRow{
			Group: group, Count: count, Total: total, Currency: row[schema.FieldCurrency],
		})
	}
	return rows, nil
}

func fieldQuery(fields, parts []string, sep string) string {
	return fmt.Sprintf("@%s:(%s)", strings.Join(fields, "|"), strings.Join(parts, sep))
}

func escapeAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = db.EscapeQuery(t)
	}
	return out
}

func maxScore(sr *db.SearchResult) float64 {
	var best float64
	for _, e := range sr.Entries {
		best = max(best, e.Score)
	}
	return best
}

func keywordScore(phrase string, c *candidate.Candidate) float64 {
	title := strings.Join(Tokenize(c.Title), " ")
	merchant := strings.Join(Tokenize(c.Merchant()), " ")
	switch {
	case phrase == title || phrase == merchant:
		return 1.0
	case strings.Contains(title, phrase) || strings.Contains(merchant, phrase):
		return 0.8
	default:
		return 0.6
	}
}
