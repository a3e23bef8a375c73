package ranking

import (
	"fmt"
	"math"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
)

// Default signal weights.
const (
	DefaultVectorWeight     = 0.4
	DefaultFullTextWeight   = 0.3
	DefaultRecencyWeight    = 0.2
	DefaultPopularityWeight = 0.1
)

// Weights combine the four normalized signals.
type Weights struct {
	Vector     float64 `json:"vector" yaml:"vector"`
	FullText   float64 `json:"full_text" yaml:"full_text"`
	Recency    float64 `json:"recency" yaml:"recency"`
	Popularity float64 `json:"popularity" yaml:"popularity"`
}

// DefaultWeights returns 0.4/0.3/0.2/0.1.
func DefaultWeights() Weights {
	return Weights{
		Vector:     DefaultVectorWeight,
		FullText:   DefaultFullTextWeight,
		Recency:    DefaultRecencyWeight,
		Popularity: DefaultPopularityWeight,
	}
}

// IsZero reports whether no weight is set.
func (w Weights) IsZero() bool { return w == Weights{} }

// Validate checks every weight is in [0,1] and the sum is positive.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"vector": w.Vector, "full_text": w.FullText,
		"recency": w.Recency, "popularity": w.Popularity,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be between 0 and 1", name)
		}
	}
	if w.Vector+w.FullText+w.Recency+w.Popularity <= 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// DiversityMode governs final ordering.
type DiversityMode string

// Diversity modes.
const (
	Relevance DiversityMode = "relevance"
	Recency   DiversityMode = "recency"
	Diversity DiversityMode = "diversity"
)

// IsValid checks if the mode is one of the supported values.
func (m DiversityMode) IsValid() bool {
	return m == Relevance || m == Recency || m == Diversity
}

// Score is the multi-factor score of one result. Every field is in [0,1].
type Score struct {
	Vector     float64 `json:"vector"`
	FullText   float64 `json:"full_text"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Combined   float64 `json:"combined"`
	ExactMatch bool    `json:"exact_match"`
}

// Result is a candidate with its score and final 1-based position.
type Result struct {
	Candidate candidate.Candidate
	Score     Score
	Position  int
}
