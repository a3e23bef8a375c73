package search

import (
	"sort"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and full-text hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each list where d appears.
// A candidate found by both keeps the higher raw similarity and both signals.
// Ties are broken by key so the fused order is deterministic.
func fuseRRF(vector, text []candidate.Candidate, topK int) []candidate.Candidate {
	type scored struct {
		c     candidate.Candidate
		score float64
	}

	merged := make(map[string]*scored, len(vector)+len(text))
	add := func(list []candidate.Candidate) {
		for rank, c := range list {
			s := 1.0 / float64(rrfK+rank+1)
			existing, ok := merged[c.Key()]
			if !ok {
				merged[c.Key()] = &scored{c: c, score: s}
				continue
			}
			existing.score += s
			signals := existing.c.Signals.Merge(c.Signals)
			if c.Similarity > existing.c.Similarity {
				existing.c = c
			}
			existing.c.Signals = signals
		}
	}
	add(vector)
	add(text)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].c.Key() < all[j].c.Key()
	})

	if len(all) > topK {
		all = all[:topK]
	}
	out := make([]candidate.Candidate, len(all))
	for i, s := range all {
		out[i] = s.c
	}
	return out
}
