// Package compiler trims a ranked list to the page the caller asked for.
package compiler

import (
	"github.com/noa10/mataresit-sub011/internal/domain/search/filter"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Page is the compiled result page.
type Page struct {
	Results []ranking.Result
	// Total counts results that passed the post-filters, before pagination.
	Total int
	// Filtered counts results removed by post-filters.
	Filtered int
	// Duplicates counts repeated (sourceType, sourceId) pairs that were dropped.
	Duplicates int
}

// Compile applies f as post-filters to the ranked list, drops duplicate keys
// keeping the higher-scoring entry, and returns the [offset, offset+limit) page.
// Order is preserved. Positions are 1-based over the whole filtered list.
func Compile(in []ranking.Result, f filter.Filters, offset, limit int) Page {
	var p Page

	kept := make([]ranking.Result, 0, len(in))
	index := make(map[string]int, len(in))
	for _, r := range in {
		if !Allows(f, &r) {
			p.Filtered++
			continue
		}
		k := r.Candidate.Key()
		if i, dup := index[k]; dup {
			p.Duplicates++
			if better(&r, &kept[i]) {
				kept[i] = r
			}
			continue
		}
		index[k] = len(kept)
		kept = append(kept, r)
	}

	p.Total = len(kept)
	if offset < 0 {
		offset = 0
	}
	if offset > len(kept) {
		offset = len(kept)
	}
	end := len(kept)
	if limit > 0 {
		end = min(end, offset+limit)
	}

	p.Results = make([]ranking.Result, 0, end-offset)
	for i := offset; i < end; i++ {
		r := kept[i]
		r.Position = i + 1
		p.Results = append(p.Results, r)
	}
	return p
}

// Allows reports whether r passes every post-filter. Date bounds apply to the
// entity's own date; an amount bound excludes results without an amount.
func Allows(f filter.Filters, r *ranking.Result) bool {
	c := &r.Candidate
	if dr := f.Date(); !dr.IsZero() && !dr.Contains(c.EntityDate()) {
		return false
	}
	if a := f.Amount(); a.IsSet() {
		v, ok := c.Amount()
		if !ok || !a.Contains(v) {
			return false
		}
	}
	if !f.AllowsStatus(c.Status()) {
		return false
	}
	return f.AllowsSourceType(c.SourceType)
}

func better(a, b *ranking.Result) bool {
	if a.Score.Combined != b.Score.Combined {
		return a.Score.Combined > b.Score.Combined
	}
	return a.Candidate.Similarity > b.Candidate.Similarity
}
