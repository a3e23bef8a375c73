package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func res(id string, combined float64, meta map[string]any) ranking.Result {
	return ranking.Result{
		Candidate: candidate.Candidate{SourceType: "receipt", SourceID: id, Metadata: meta},
		Score:     ranking.Score{Combined: combined},
	}
}

func ids(rs []ranking.Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].Candidate.SourceID
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestCompile_NoFiltersPaginates(t *testing.T) {
	in := []ranking.Result{res("a", .9, nil), res("b", .8, nil), res("c", .7, nil), res("d", .6, nil)}

	p := Compile(in, filter.Filters{}, 1, 2)

	assert.Equal(t, []string{"b", "c"}, ids(p.Results))
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.Results[0].Position)
	assert.Equal(t, 3, p.Results[1].Position)
}

func TestCompile_OffsetPastEnd(t *testing.T) {
	p := Compile([]ranking.Result{res("a", .9, nil)}, filter.Filters{}, 5, 10)
	assert.NotNil(t, p.Results)
	assert.Empty(t, p.Results)
	assert.Equal(t, 1, p.Total)
}

func TestCompile_DateUsesEntityDate(t *testing.T) {
	dr, err := filter.NewDateRange(day("2026-03-11"), day("2026-03-18"))
	require.NoError(t, err)
	f := filter.Filters{}.WithDate(dr)

	inRange := res("in", .5, map[string]any{candidate.MetaEntityDate: "2026-03-12"})
	inRange.Candidate.CreatedAt = day("2025-01-01")
	outOfRange := res("out", .9, map[string]any{candidate.MetaEntityDate: "2026-02-01"})
	outOfRange.Candidate.CreatedAt = day("2026-03-15")

	p := Compile([]ranking.Result{outOfRange, inRange}, f, 0, 10)

	assert.Equal(t, []string{"in"}, ids(p.Results))
	assert.Equal(t, 1, p.Filtered)
	assert.Equal(t, 1, p.Results[0].Position)
}

func TestCompile_AmountBounds(t *testing.T) {
	in := []ranking.Result{
		res("low", .9, map[string]any{candidate.MetaTotal: 20.0}),
		res("exact", .8, map[string]any{candidate.MetaTotal: "50"}),
		res("high", .7, map[string]any{candidate.MetaTotal: 120.0}),
		res("none", .6, nil),
	}

	tests := []struct {
		name     string
		min, max *float64
		want     []string
	}{
		{"min only", ptr(50), nil, []string{"exact", "high"}},
		{"max only", nil, ptr(50), []string{"low", "exact"}},
		{"both", ptr(30), ptr(100), []string{"exact"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := filter.NewAmountRange(tt.min, tt.max)
			require.NoError(t, err)
			p := Compile(in, filter.Filters{}.WithAmount(a), 0, 10)
			assert.Equal(t, tt.want, ids(p.Results))
		})
	}
}

func TestCompile_StatusAndSourceType(t *testing.T) {
	f, err := filter.New(filter.DateRange{}, filter.AmountRange{}, []string{"Reviewed"}, []string{"receipt"})
	require.NoError(t, err)

	claim := res("claim", .95, map[string]any{candidate.MetaStatus: "reviewed"})
	claim.Candidate.SourceType = "claim"
	in := []ranking.Result{
		claim,
		res("ok", .9, map[string]any{candidate.MetaStatus: "REVIEWED"}),
		res("draft", .8, map[string]any{candidate.MetaStatus: "draft"}),
	}

	p := Compile(in, f, 0, 10)
	assert.Equal(t, []string{"ok"}, ids(p.Results))
	assert.Equal(t, 2, p.Filtered)
}

func TestCompile_DedupesKeepingHigherScore(t *testing.T) {
	first := res("a", .4, map[string]any{"chunk": 1})
	second := res("a", .7, map[string]any{"chunk": 2})
	in := []ranking.Result{first, res("b", .5, nil), second}

	p := Compile(in, filter.Filters{}, 0, 10)

	require.Equal(t, []string{"a", "b"}, ids(p.Results))
	assert.Equal(t, 2, p.Results[0].Candidate.Metadata["chunk"])
	assert.Equal(t, 1, p.Duplicates)
	assert.Equal(t, 2, p.Total)
}
