package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/metrics"
)

// InstrumentedEmbedder wraps an Embedder with a timeout, dimension normalization and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	dim      int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder producing vectors of exactly dim floats.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dim int, timeout time.Duration, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		dim:      dim,
		timeout:  timeout,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder and normalizes the vector length.
// Provider failures wrap domain.ErrEmbeddingUnavailable; an oversized vector
// fails with domain.ErrDimensionMismatch.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed: %v: %w", err, domain.ErrEmbeddingUnavailable)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	got := len(result.Embedding)
	vec, padded, err := Normalize(result.Embedding, p.dim)
	if err != nil {
		p.logger.Error("Embedding dimension mismatch",
			zap.String("model", p.model),
			zap.Int("expected", p.dim),
			zap.Int("got", got),
		)
		return domain.EmbeddingResult{}, err
	}
	if padded {
		metrics.EmbeddingPaddedTotal.Inc()
		p.logger.Warn("Embedding zero-padded to configured dimension",
			zap.String("model", p.model),
			zap.Int("expected", p.dim),
			zap.Int("got", got),
		)
	}
	result.Embedding = vec
	result.Padded = padded

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(vec)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Normalize brings vec to exactly dim floats. Shorter vectors are zero-padded
// (padded=true); empty or longer vectors are rejected. dim <= 0 accepts any length.
func Normalize(vec []float32, dim int) ([]float32, bool, error) {
	if len(vec) == 0 {
		return nil, false, fmt.Errorf("empty vector: %w", domain.ErrDimensionMismatch)
	}
	switch {
	case dim <= 0 || len(vec) == dim:
		return vec, false, nil
	case len(vec) > dim:
		return nil, false, fmt.Errorf("got %d dimensions, want %d: %w", len(vec), dim, domain.ErrDimensionMismatch)
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out, true, nil
}
