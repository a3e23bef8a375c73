// Package reranker reorders the head of a ranked list with an LLM.
package reranker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/domain/search/rerank"
	"github.com/noa10/mataresit-sub011/internal/metrics"
	"github.com/noa10/mataresit-sub011/internal/usecase/llm"
)

// DefaultMaxCandidates bounds how many results are sent to the model.
const DefaultMaxCandidates = 50

type completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error)
}

// Config tunes re-ranking.
type Config struct {
	Enabled       bool
	MaxCandidates int
	Temperature   float64
	MaxTokens     int
}

// Service re-ranks results. It never fails: every problem degrades to the input order.
type Service struct {
	llm    completer
	cfg    Config
	logger *zap.Logger
}

// New creates a re-ranker. l may be nil, which disables re-ranking.
func New(l completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Service{llm: l, cfg: cfg, logger: logger}
}

type llmResponse struct {
	Order      []int  `json:"order"`
	Confidence string `json:"confidence"`
}

// ReRank reorders the first MaxCandidates results for text. The tail beyond
// that bound keeps its order. Positions are reassigned 1..n.
func (s *Service) ReRank(ctx context.Context, text string, in []ranking.Result) rerank.Outcome {
	start := time.Now()
	out := s.rerank(ctx, text, in)
	out.Duration = time.Since(start)
	for i := range out.Results {
		out.Results[i].Position = i + 1
	}
	metrics.RerankTotal.WithLabelValues(string(out.Confidence), out.Model).Inc()
	return out
}

func (s *Service) rerank(ctx context.Context, text string, in []ranking.Result) rerank.Outcome {
	passThrough := func(model string) rerank.Outcome {
		return rerank.Outcome{Results: in, Confidence: rerank.Low, Model: model}
	}
	if len(in) <= 1 || !s.cfg.Enabled || s.llm == nil || strings.TrimSpace(text) == "" {
		return passThrough(rerank.ModelSkipped)
	}

	n := min(len(in), s.cfg.MaxCandidates)
	head := in[:n]

	comp, err := s.llm.Complete(ctx, buildPrompt(text, head), domain.CompletionOptions{
		System:      systemPrompt,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		s.logger.Warn("Re-rank fell back to ranked order",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrReRankFailed, err)))
		return passThrough(rerank.ModelFallback)
	}

	var resp llmResponse
	if err := llm.DecodeJSON(comp.Text, &resp); err != nil {
		s.logger.Warn("Re-rank fell back to ranked order",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrReRankFailed, err)))
		return passThrough(rerank.ModelFallback)
	}
	order, err := applyOrder(resp.Order, n)
	if err != nil {
		s.logger.Warn("Re-rank fell back to ranked order",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrReRankFailed, err)))
		return passThrough(rerank.ModelFallback)
	}

	results := make([]ranking.Result, 0, len(in))
	for _, i := range order {
		results = append(results, head[i])
	}
	results = append(results, in[n:]...)

	model := comp.Model
	if model == "" {
		model = "llm"
	}
	return rerank.Outcome{
		Results:    results,
		Confidence: rerank.ParseConfidence(strings.ToLower(strings.TrimSpace(resp.Confidence))),
		Model:      model,
		Applied:    true,
	}
}

// applyOrder validates 1-based model indices against n items. Duplicates and
// out-of-range entries are dropped; items the model omitted follow in their
// original order. An order naming no valid item is rejected.
func applyOrder(order []int, n int) ([]int, error) {
	seen := make([]bool, n)
	out := make([]int, 0, n)
	for _, idx := range order {
		i := idx - 1
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: order names no candidate", domain.ErrMalformedLLMOutput)
	}
	for i := range seen {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out, nil
}
