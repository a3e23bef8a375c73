package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
)

type fakeIndexManager struct {
	info      *db.IndexInfo
	infoErr   error
	createErr error
	created   *db.IndexDefinition
}

func (f *fakeIndexManager) DescribeIndex(_ context.Context, name string) (*db.IndexInfo, error) {
	if f.info == nil && f.infoErr == nil {
		return nil, db.ErrIndexNotFound
	}
	if f.info != nil {
		f.info.Name = name
	}
	return f.info, f.infoErr
}

func (f *fakeIndexManager) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.created = def
	return f.createErr
}

func TestDefinition(t *testing.T) {
	def, err := Definition("docs", 1536)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := def.String()
	for _, want := range []string{
		"mataresit:docs", "PREFIX mataresit:doc:", "source_id TAG",
		"merchant TEXT WEIGHT 2 NOSTEM", "title TEXT WEIGHT 1.5",
		"entity_date NUMERIC SORTABLE", "embedding VECTOR HNSW",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("definition %q missing %q", s, want)
		}
	}
}

func TestEnsureIndex(t *testing.T) {
	m := &fakeIndexManager{}
	created, err := EnsureIndex(context.Background(), m, "docs", 8)
	if err != nil || !created || m.created == nil {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}

	m = &fakeIndexManager{info: &db.IndexInfo{VectorDim: 8}}
	created, err = EnsureIndex(context.Background(), m, "docs", 8)
	if err != nil || created || m.created != nil {
		t.Fatalf("existing index must be left alone, got created=%v err=%v", created, err)
	}

	m = &fakeIndexManager{info: &db.IndexInfo{VectorDim: 1536}}
	if _, err := EnsureIndex(context.Background(), m, "docs", 768); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	m = &fakeIndexManager{infoErr: errors.New("timeout")}
	if _, err := EnsureIndex(context.Background(), m, "docs", 8); err == nil || m.created != nil {
		t.Fatalf("info failure must not create, got err=%v", err)
	}

	m = &fakeIndexManager{createErr: db.ErrIndexExists}
	if _, err := EnsureIndex(context.Background(), m, "docs", 8); err != nil {
		t.Fatalf("racing creation should be tolerated, got %v", err)
	}

	m = &fakeIndexManager{createErr: errors.New("boom")}
	if _, err := EnsureIndex(context.Background(), m, "docs", 8); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckIndex(t *testing.T) {
	ok := &fakeIndexManager{info: &db.IndexInfo{VectorDim: 1536, NumDocs: 3}}
	if err := CheckIndex(context.Background(), ok, "docs", 1536); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missing := &fakeIndexManager{}
	if err := CheckIndex(context.Background(), missing, "docs", 1536); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}

	wrong := &fakeIndexManager{info: &db.IndexInfo{VectorDim: 768}}
	err := CheckIndex(context.Background(), wrong, "docs", 1536)
	if !errors.Is(err, domain.ErrDimensionMismatch) || !strings.Contains(err.Error(), "mataresit:docs") {
		t.Errorf("expected dimension mismatch naming the index, got %v", err)
	}
}

func TestFilter_PushDown(t *testing.T) {
	from := time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	dr, _ := filter.NewDateRange(from, to)
	minAmount := 50.0
	amount, _ := filter.NewAmountRange(&minAmount, nil)
	f := filter.Filters{}.WithDate(dr).WithAmount(amount).WithIDs([]string{"r1", "r2"})

	out := Filter(domain.Scope{UserID: "u1", TeamID: "t1"}, f)
	if len(out.Should) != 3 {
		t.Errorf("expected user, team and public scope clauses, got %d", len(out.Should))
	}
	if len(out.Must) != 3 {
		t.Fatalf("expected date, amount and id clauses, got %+v", out.Must)
	}
	date := out.Must[0]
	if *date.Min != float64(from.Unix()) || *date.Max != float64(to.Unix()+86399) {
		t.Errorf("unexpected day bounds %v..%v", *date.Min, *date.Max)
	}
	if out.Must[1].Max != nil || *out.Must[1].Min != 50 {
		t.Error("amount clause must keep min-only semantics")
	}
	if len(out.Must[2].Tags) != 2 {
		t.Errorf("expected id tags, got %+v", out.Must[2])
	}
}
