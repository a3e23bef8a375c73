package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/domain/search/rerank"
	"github.com/noa10/mataresit-sub011/internal/domain/search/route"
)

// Stage is one step of the pipeline.
type Stage string

// Stages in execution order.
const (
	StagePreprocessing Stage = "preprocessing"
	StageEmbedding     Stage = "embedding"
	StageSearch        Stage = "search"
	StageRanking       Stage = "ranking"
	StageReRanking     Stage = "reranking"
	StageCompilation   Stage = "compilation"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StagePreprocessing, StageEmbedding, StageSearch,
	StageRanking, StageReRanking, StageCompilation,
}

// Metadata accumulates per-stage bookkeeping for one run.
type Metadata struct {
	Timings         map[Stage]time.Duration
	SourcesSearched []string
	FallbacksUsed   []route.Method
	CacheHits       []Stage
	Method          route.Method
	Warnings        []string
}

// Context is the per-request accumulator threaded through every stage.
// It is owned by a single goroutine and never shared.
type Context struct {
	ID         string
	StartedAt  time.Time
	Query      query.Query
	Preprocess preprocess.Result
	Vector     []float32
	Candidates []candidate.Candidate
	Ranked     []ranking.Result
	ReRank     rerank.Outcome
	Final      []ranking.Result
	Total      int
	Meta       Metadata

	decision    route.Decision
	decisionSet bool
}

// NewContext starts a run for q.
func NewContext(q query.Query, now time.Time) *Context {
	return &Context{
		ID:        uuid.NewString(),
		StartedAt: now,
		Query:     q,
		Meta:      Metadata{Timings: make(map[Stage]time.Duration, len(Stages))},
	}
}

// SetDecision records the routing decision. It can be set once per run.
func (c *Context) SetDecision(d route.Decision) error {
	if c.decisionSet {
		return domain.ErrDecisionLocked
	}
	c.decision = d
	c.decisionSet = true
	return nil
}

// Decision returns the routing decision and whether it has been made.
func (c *Context) Decision() (route.Decision, bool) { return c.decision, c.decisionSet }

// Record stores a stage timing.
func (c *Context) Record(s Stage, d time.Duration) { c.Meta.Timings[s] = d }

// Warn appends a non-fatal degradation note.
func (c *Context) Warn(msg string) { c.Meta.Warnings = append(c.Meta.Warnings, msg) }

// CacheHit notes that a stage was served from cache.
func (c *Context) CacheHit(s Stage) { c.Meta.CacheHits = append(c.Meta.CacheHits, s) }

// FallbackUsed reports whether the search stage degraded past its primary method.
func (c *Context) FallbackUsed() bool { return len(c.Meta.FallbacksUsed) > 0 }

// Descriptor is a presentation hint for one result.
type Descriptor struct {
	Kind     string         `json:"kind"`
	SourceID string         `json:"source_id,omitempty"`
	Title    string         `json:"title"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Answer is the human-facing rendering of a result set.
type Answer struct {
	Text        string
	Descriptors []Descriptor
}

// Response is the terminal output of a successful run.
type Response struct {
	PipelineID   string
	Results      []ranking.Result
	Total        int
	Success      bool
	Method       route.Method
	Strategy     route.Strategy
	FallbackUsed bool
	// ThresholdBypass reports whether a monetary filter zeroed the similarity gates.
	ThresholdBypass bool
	Confidence      rerank.Confidence
	RerankModel     string
	Intent          intent.Intent
	Preprocess      preprocess.Result
	Meta            Metadata
	Answer          Answer
	Duration        time.Duration
}
