package candidate

import (
	"strconv"
	"strings"
	"time"
)

// Metadata keys understood by the ranking and compilation stages.
const (
	MetaEntityDate = "date"
	MetaTotal      = "total"
	MetaCurrency   = "currency"
	MetaStatus     = "status"
	MetaMerchant   = "merchant"
	MetaCategory   = "category"
)

// Access levels.
const (
	AccessUser   = "user"
	AccessTeam   = "team"
	AccessPublic = "public"
)

// Signals are the per-primitive raw scores gathered for one candidate, each in [0,1].
type Signals struct {
	Vector   float64
	FullText float64
	Fuzzy    float64
	Keyword  float64
}

// Max returns the strongest signal.
func (s Signals) Max() float64 {
	return max(s.Vector, s.FullText, s.Fuzzy, s.Keyword)
}

// Merge keeps the strongest value of each signal.
func (s Signals) Merge(o Signals) Signals {
	return Signals{
		Vector:   max(s.Vector, o.Vector),
		FullText: max(s.FullText, o.FullText),
		Fuzzy:    max(s.Fuzzy, o.Fuzzy),
		Keyword:  max(s.Keyword, o.Keyword),
	}
}

// Candidate is one retrieved item before ranking.
type Candidate struct {
	SourceType  string
	SourceID    string
	ContentType string
	Title       string
	Description string
	// Similarity is the raw similarity reported by the retrieving primitive, in [0,1].
	Similarity  float64
	Signals     Signals
	Metadata    map[string]any
	CreatedAt   time.Time
	AccessLevel string
}

// Key is the deduplication identity (sourceType, sourceId).
func (c *Candidate) Key() string { return c.SourceType + ":" + c.SourceID }

// Normalize clamps similarity and every signal into [0,1].
func (c *Candidate) Normalize() {
	c.Similarity = Clamp(c.Similarity)
	c.Signals = Signals{
		Vector:   Clamp(c.Signals.Vector),
		FullText: Clamp(c.Signals.FullText),
		Fuzzy:    Clamp(c.Signals.Fuzzy),
		Keyword:  Clamp(c.Signals.Keyword),
	}
}

// EntityDate returns the item's own date (e.g. receipt date), falling back to CreatedAt.
func (c *Candidate) EntityDate() time.Time {
	switch v := c.Metadata[MetaEntityDate].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	}
	return c.CreatedAt
}

// Amount returns the monetary total if present.
func (c *Candidate) Amount() (float64, bool) {
	switch v := c.Metadata[MetaTotal].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Status returns the workflow status tag.
func (c *Candidate) Status() string { return c.metaString(MetaStatus) }

// Merchant returns the merchant name, if any.
func (c *Candidate) Merchant() string { return c.metaString(MetaMerchant) }

// Category returns the category label, if any.
func (c *Candidate) Category() string { return c.metaString(MetaCategory) }

func (c *Candidate) metaString(key string) string {
	if s, ok := c.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Dedupe collapses candidates sharing a key, keeping the highest-similarity
// duplicate with merged signals. First-seen order is preserved.
func Dedupe(in []Candidate) []Candidate {
	if len(in) < 2 {
		return in
	}
	idx := make(map[string]int, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		k := c.Key()
		i, seen := idx[k]
		if !seen {
			idx[k] = len(out)
			out = append(out, c)
			continue
		}
		merged := out[i].Signals.Merge(c.Signals)
		if c.Similarity > out[i].Similarity {
			out[i] = c
		}
		out[i].Signals = merged
	}
	return out
}
