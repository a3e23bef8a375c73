package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
)

// Hash field names of an indexed document.
const (
	FieldSourceType  = "source_type"
	FieldSourceID    = "source_id"
	FieldContentType = "content_type"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldMerchant    = "merchant"
	FieldMerchantTag = "merchant_tag"
	FieldCategory    = "category"
	FieldContent     = "content"
	FieldUserID      = "user_id"
	FieldTeamID      = "team_id"
	FieldStatus      = "status"
	FieldAccessLevel = "access_level"
	FieldCurrency    = "currency"
	FieldEntityDate  = "entity_date"
	FieldCreatedAt   = "created_at"
	FieldTotal       = "total"
	FieldPopularity  = "popularity_hint"
	FieldEmbedding   = "embedding"
)

// ReturnFields are loaded for every hit; the vector itself is never returned.
var ReturnFields = []string{
	FieldSourceType, FieldSourceID, FieldContentType, FieldTitle, FieldDescription,
	FieldMerchant, FieldCategory, FieldStatus, FieldAccessLevel, FieldCurrency,
	FieldEntityDate, FieldCreatedAt, FieldTotal,
}

// TextFields are the fields searched by the lexical primitives.
var TextFields = []string{FieldTitle, FieldDescription, FieldMerchant, FieldContent}

// Merchant names are matched verbatim and outrank body text in BM25.
const (
	merchantWeight = 2.0
	titleWeight    = 1.5
)

// IndexName returns the FT index name under the configured key prefix.
func IndexName(name string) string {
	return domain.KeyPrefix + name
}

// Definition builds the FT index over document hashes with a dim-sized vector field.
func Definition(name string, dim int) (*db.IndexDefinition, error) {
	return db.NewIndex(IndexName(name)).
		Prefix(domain.DocumentKeyPrefix()).
		Tag(FieldSourceType, FieldSourceID, FieldContentType, FieldUserID, FieldTeamID,
			FieldStatus, FieldAccessLevel, FieldCurrency).
		TagWithSeparator(FieldMerchantTag, "|").
		TagWithSeparator(FieldCategory, "|").
		WeightedText(FieldMerchant, merchantWeight, true).
		WeightedText(FieldTitle, titleWeight, false).
		Text(FieldDescription, FieldContent).
		SortableNumeric(FieldEntityDate, FieldCreatedAt).
		Numeric(FieldTotal, FieldPopularity).
		VectorHNSW(FieldEmbedding, dim, db.DistanceCosine, 16, 200).
		Build()
}

type indexDescriber interface {
	DescribeIndex(ctx context.Context, name string) (*db.IndexInfo, error)
}

type indexManager interface {
	indexDescriber
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
}

// CheckIndex verifies the document index exists and was built for dim-sized vectors.
// A mismatch is an ErrDimensionMismatch: every KNN query against it would fail.
func CheckIndex(ctx context.Context, m indexDescriber, name string, dim int) error {
	info, err := m.DescribeIndex(ctx, IndexName(name))
	if err != nil {
		return fmt.Errorf("describe index %s: %w", IndexName(name), err)
	}
	if info.VectorDim != 0 && info.VectorDim != dim {
		return fmt.Errorf("%w: index %s has dimension %d, embedder produces %d",
			domain.ErrDimensionMismatch, info.Name, info.VectorDim, dim)
	}
	return nil
}

// EnsureIndex creates the document index if it does not exist. Reports whether it was created.
// An existing index is checked with CheckIndex and never altered.
func EnsureIndex(ctx context.Context, m indexManager, name string, dim int) (bool, error) {
	def, err := Definition(name, dim)
	if err != nil {
		return false, fmt.Errorf("build index definition: %w", err)
	}

	err = CheckIndex(ctx, m, name, dim)
	if err == nil || !errors.Is(err, db.ErrIndexNotFound) {
		return false, err
	}

	if err := m.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return true, nil
}

// ScopeFilter restricts results to the requester's own, team and public documents.
func ScopeFilter(s domain.Scope) db.Filter {
	var f db.Filter
	if s.UserID != "" {
		f.Should = append(f.Should, db.TagCondition(FieldUserID, s.UserID))
	}
	if s.TeamID != "" {
		f.Should = append(f.Should, db.TagCondition(FieldTeamID, s.TeamID))
	}
	f.Should = append(f.Should, db.TagCondition(FieldAccessLevel, "public"))
	return f
}

// Filter translates scope plus pushed-down filters into a pre-filter.
func Filter(s domain.Scope, f filter.Filters) db.Filter {
	out := ScopeFilter(s)
	if dr := f.Date(); !dr.IsZero() {
		minVal, maxVal := DayBounds(dr)
		out.Must = append(out.Must, db.RangeCondition(FieldEntityDate, minVal, maxVal))
	}
	if a := f.Amount(); a.IsSet() {
		out.Must = append(out.Must, db.RangeCondition(FieldTotal, a.Min(), a.Max()))
	}
	if st := f.Statuses(); len(st) > 0 {
		out.Must = append(out.Must, db.TagCondition(FieldStatus, st...))
	}
	if st := f.SourceTypes(); len(st) > 0 {
		out.Must = append(out.Must, db.TagCondition(FieldSourceType, st...))
	}
	if ids := f.IDs(); len(ids) > 0 {
		out.Must = append(out.Must, db.TagCondition(FieldSourceID, ids...))
	}
	return out
}

// DayBounds converts a day range into inclusive unix-second bounds.
func DayBounds(r filter.DateRange) (minVal, maxVal *float64) {
	if from := r.From(); !from.IsZero() {
		v := float64(from.Unix())
		minVal = &v
	}
	if to := r.To(); !to.IsZero() {
		v := float64(to.Add(24*time.Hour - time.Second).Unix())
		maxVal = &v
	}
	return minVal, maxVal
}
