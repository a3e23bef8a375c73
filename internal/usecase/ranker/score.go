// Package ranker combines retrieval signals into one ordered result list.
package ranker

import (
	"math"
	"strings"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Defaults.
const (
	DefaultRecencyLambda     = 0.05
	DefaultRecencyFloor      = 0.05
	DefaultExactBoost        = 2.5
	DefaultPopularityUnknown = 0.5
)

// Config tunes scoring.
type Config struct {
	RecencyLambda     float64
	RecencyFloor      float64
	ExactBoost        float64
	DefaultPopularity float64
}

// DefaultConfig returns λ=0.05, floor 0.05, boost 2.5, unknown popularity 0.5.
func DefaultConfig() Config {
	return Config{
		RecencyLambda:     DefaultRecencyLambda,
		RecencyFloor:      DefaultRecencyFloor,
		ExactBoost:        DefaultExactBoost,
		DefaultPopularity: DefaultPopularityUnknown,
	}
}

// Recency is exp(-λ·days) floored so nothing decays to zero. Future dates count as today.
func Recency(days, lambda, floor float64) float64 {
	if days < 0 || math.IsNaN(days) {
		days = 0
	}
	return candidate.Clamp(max(floor, math.Exp(-lambda*days)))
}

// Score computes the weighted multi-factor score of c. popularity must be in [0,1].
func Score(
	c *candidate.Candidate, w ranking.Weights, popularity float64, exact bool, now time.Time, cfg Config,
) ranking.Score {
	s := c.Signals
	vec := s.Vector
	lex := max(s.FullText, s.Fuzzy, s.Keyword)
	if s.Max() == 0 {
		// filter-only and synthetic hits carry only the raw similarity
		vec = c.Similarity
	}

	days := now.Sub(timestamp(c)).Hours() / 24
	rec := Recency(days, cfg.RecencyLambda, cfg.RecencyFloor)
	pop := candidate.Clamp(popularity)

	combined := w.Vector*candidate.Clamp(vec) + w.FullText*candidate.Clamp(lex) +
		w.Recency*rec + w.Popularity*pop
	if exact {
		combined *= cfg.ExactBoost
	}

	return ranking.Score{
		Vector:     candidate.Clamp(vec),
		FullText:   candidate.Clamp(lex),
		Recency:    rec,
		Popularity: pop,
		Combined:   candidate.Clamp(combined),
		ExactMatch: exact,
	}
}

// IsExactMatch reports whether the title or merchant equals one of the phrases, ignoring case.
func IsExactMatch(c *candidate.Candidate, phrases []string) bool {
	title := normalizePhrase(c.Title)
	merchant := normalizePhrase(c.Merchant())
	for _, p := range phrases {
		p = normalizePhrase(p)
		if p == "" {
			continue
		}
		if p == title || p == merchant {
			return true
		}
	}
	return false
}

func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// timestamp is the creation time, falling back to the entity's own date.
func timestamp(c *candidate.Candidate) time.Time {
	if !c.CreatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.EntityDate()
}
