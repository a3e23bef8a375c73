package rerank

import (
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Confidence is the reliability label of a re-rank.
type Confidence string

// Confidence levels.
const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// ParseConfidence maps a model label to a Confidence, defaulting to Low.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case High:
		return High
	case Medium:
		return Medium
	}
	return Low
}

// Model tags for outcomes that did not come from an LLM.
const (
	ModelSkipped  = "skipped"
	ModelFallback = "fallback"
)

// Outcome is the result of re-ranking.
type Outcome struct {
	Results    []ranking.Result
	Confidence Confidence
	Model      string
	Duration   time.Duration
	// Applied reports whether the order came from the LLM.
	Applied bool
}
