package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
)

func vecHit(id string, sim float64) candidate.Candidate {
	return candidate.Candidate{SourceType: "receipt", SourceID: id, Similarity: sim, Signals: candidate.Signals{Vector: sim}}
}

func textHit(id string, sim float64) candidate.Candidate {
	return candidate.Candidate{SourceType: "receipt", SourceID: id, Similarity: sim, Signals: candidate.Signals{FullText: sim}}
}

func keys(cs []candidate.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.SourceID
	}
	return out
}

func TestFuseRRF_DisjointLists(t *testing.T) {
	got := fuseRRF(
		[]candidate.Candidate{vecHit("a", 0.9), vecHit("b", 0.8)},
		[]candidate.Candidate{textHit("c", 1), textHit("d", 0.5)},
		10,
	)
	// equal ranks tie on score and fall back to key order
	assert.Equal(t, []string{"a", "c", "b", "d"}, keys(got))
}

func TestFuseRRF_OverlapMergesSignals(t *testing.T) {
	got := fuseRRF(
		[]candidate.Candidate{vecHit("a", 0.9), vecHit("b", 0.7), vecHit("c", 0.6)},
		[]candidate.Candidate{textHit("b", 1), textHit("d", 0.4), textHit("a", 0.2)},
		10,
	)
	require.Len(t, got, 4)

	// "b": 1/62 + 1/61 beats "a": 1/61 + 1/63; "d" (1/62) beats "c" (1/63)
	assert.Equal(t, []string{"b", "a", "d", "c"}, keys(got))
	assert.Equal(t, candidate.Signals{Vector: 0.7, FullText: 1}, got[0].Signals)
	assert.Equal(t, 1.0, got[0].Similarity)
	assert.Equal(t, candidate.Signals{Vector: 0.9, FullText: 0.2}, got[1].Signals)
}

func TestFuseRRF_TopK(t *testing.T) {
	got := fuseRRF([]candidate.Candidate{vecHit("a", 1), vecHit("b", 1), vecHit("c", 1)}, nil, 2)
	assert.Equal(t, []string{"a", "b"}, keys(got))
}
