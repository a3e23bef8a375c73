package ranker

import (
	"sort"

	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// less is the relevance order: exact matches first, then combined score, then raw
// similarity, then newer items, then key. It is a total order.
func less(a, b *ranking.Result) bool {
	if a.Score.ExactMatch != b.Score.ExactMatch {
		return a.Score.ExactMatch
	}
	if a.Score.Combined != b.Score.Combined {
		return a.Score.Combined > b.Score.Combined
	}
	if a.Candidate.Similarity != b.Candidate.Similarity {
		return a.Candidate.Similarity > b.Candidate.Similarity
	}
	ta, tb := timestamp(&a.Candidate), timestamp(&b.Candidate)
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.Candidate.Key() < b.Candidate.Key()
}

// Order applies the diversity mode and assigns 1-based positions. window is the
// number of leading results the diversity cap is computed for (offset + limit).
func Order(results []ranking.Result, mode ranking.DiversityMode, window int) []ranking.Result {
	sort.SliceStable(results, func(i, j int) bool { return less(&results[i], &results[j]) })

	switch mode {
	case ranking.Recency:
		sort.SliceStable(results, func(i, j int) bool {
			ti, tj := timestamp(&results[i].Candidate), timestamp(&results[j].Candidate)
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return less(&results[i], &results[j])
		})
	case ranking.Diversity:
		results = interleave(results, window)
	}

	for i := range results {
		results[i].Position = i + 1
	}
	return results
}

// interleave round-robins across source types in relevance order, keeping at most
// ceil(window / distinct sources) results per source.
func interleave(sorted []ranking.Result, window int) []ranking.Result {
	var sources []string
	groups := make(map[string][]ranking.Result)
	for _, r := range sorted {
		st := r.Candidate.SourceType
		if _, ok := groups[st]; !ok {
			sources = append(sources, st)
		}
		groups[st] = append(groups[st], r)
	}
	if len(sources) == 0 {
		return sorted
	}
	if window <= 0 {
		window = len(sorted)
	}
	perSource := (window + len(sources) - 1) / len(sources)

	out := make([]ranking.Result, 0, min(len(sorted), perSource*len(sources)))
	for round := 0; round < perSource; round++ {
		added := false
		for _, st := range sources {
			if round < len(groups[st]) {
				out = append(out, groups[st][round])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return out
}
