package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noa10/mataresit-sub011/internal/domain"
)

// InstrumentedLLM wraps an LLM provider with a shared rate limit, a per-call
// timeout and logging. Transport metrics are recorded by the provider adapters.
type InstrumentedLLM struct {
	inner    domain.LLM
	limiter  *rate.Limiter
	timeout  time.Duration
	provider string
	logger   *zap.Logger
}

// NewInstrumentedLLM wraps inner. rps <= 0 disables rate limiting; timeout <= 0 disables the deadline.
func NewInstrumentedLLM(
	inner domain.LLM, provider string, rps float64, burst int, timeout time.Duration, logger *zap.Logger,
) *InstrumentedLLM {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &InstrumentedLLM{
		inner:    inner,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		provider: provider,
		logger:   logger,
	}
}

// Complete waits for a rate-limit token, then delegates under the configured timeout.
func (l *InstrumentedLLM) Complete(
	ctx context.Context, prompt string, opts domain.CompletionOptions,
) (domain.Completion, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.Completion{}, fmt.Errorf("llm rate limit: %v: %w", err, domain.ErrLLMUnavailable)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := l.inner.Complete(ctx, prompt, opts)
	duration := time.Since(start)
	if err != nil {
		l.logger.Warn("LLM completion failed",
			zap.String("provider", l.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("llm complete: %w", err)
	}

	l.logger.Debug("LLM completion finished",
		zap.String("provider", l.provider),
		zap.String("model", out.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the provider when it supports health checks.
func (l *InstrumentedLLM) HealthCheck(ctx context.Context) error {
	if hc, ok := l.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
