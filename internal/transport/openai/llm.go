package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/metrics"
)

// LLM is a chat-completion provider behind the OpenAI-compatible API.
type LLM struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewLLM creates a chat-completion client. Dimensions in cfg is ignored.
func NewLLM(cfg *Config) *LLM {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Complete implements domain.LLM.
func (l *LLM) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    msgs,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		User:        l.user,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := l.client.CreateChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(l.provider, l.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, "error").Inc()
		l.logger.Debug("chat completion failed", zap.Error(err))
		return domain.Completion{}, wrapAPIError("completion", err, domain.ErrLLMUnavailable)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, "error").Inc()
		return domain.Completion{}, fmt.Errorf("empty completion response: %w", domain.ErrLLMUnavailable)
	}

	metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(l.provider, l.model).Add(float64(resp.Usage.TotalTokens))

	model := resp.Model
	if model == "" {
		model = l.model
	}
	return domain.Completion{
		Text:        resp.Choices[0].Message.Content,
		Model:       model,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (l *LLM) HealthCheck(ctx context.Context) error {
	if _, err := l.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
