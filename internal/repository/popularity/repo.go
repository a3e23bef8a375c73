package popularity

import (
	"context"
	"fmt"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

// Dimensions a popularity count can be taken over.
const (
	ByCategory = schema.FieldCategory
	ByMerchant = schema.FieldMerchantTag
)

type store interface {
	SearchCount(ctx context.Context, index string, f db.Filter) (int, error)
}

// Repo counts documents per category or merchant within a requester's scope.
type Repo struct {
	store store
	index string
}

// New creates a popularity repository for the named index.
func New(s store, indexName string) *Repo {
	return &Repo{store: s, index: schema.IndexName(indexName)}
}

// Count returns how many in-scope documents carry value in field.
func (r *Repo) Count(ctx context.Context, scope domain.Scope, field, value string) (int, error) {
	f := schema.ScopeFilter(scope)
	f.Must = append(f.Must, db.TagCondition(field, value))
	n, err := r.store.SearchCount(ctx, r.index, f)
	if err != nil {
		return 0, fmt.Errorf("count %s=%s: %w", field, value, err)
	}
	return n, nil
}
