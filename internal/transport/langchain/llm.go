// Package langchain adapts langchaingo models (local Ollama, OpenAI-compatible
// gateways) to the domain.LLM contract.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/metrics"
)

// LLM wraps a langchaingo model.
type LLM struct {
	model    llms.Model
	name     string
	provider string
}

// New wraps an existing langchaingo model.
func New(model llms.Model, name, provider string) *LLM {
	return &LLM{model: model, name: name, provider: provider}
}

// NewOpenAICompatible dials an OpenAI-compatible endpoint (Ollama's /v1, vLLM, LocalAI).
func NewOpenAICompatible(baseURL, token, model string) (*LLM, error) {
	if token == "" {
		token = "none"
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(token),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return New(client, model, "langchain"), nil
}

// Complete implements domain.LLM.
func (l *LLM) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	content := make([]llms.MessageContent, 0, 2)
	if opts.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, opts.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := l.model.GenerateContent(ctx, content, callOpts...)
	metrics.LLMRequestDuration.WithLabelValues(l.provider, l.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.name, "error").Inc()
		return domain.Completion{}, fmt.Errorf("generate content: %v: %w", err, domain.ErrLLMUnavailable)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.name, "error").Inc()
		return domain.Completion{}, fmt.Errorf("empty completion: %w", domain.ErrLLMUnavailable)
	}
	metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.name, "success").Inc()

	choice := resp.Choices[0]
	tokens := totalTokens(choice.GenerationInfo)
	if tokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(l.provider, l.name).Add(float64(tokens))
	}
	return domain.Completion{Text: choice.Content, Model: l.name, TotalTokens: tokens}, nil
}

func totalTokens(info map[string]any) int {
	switch v := info["TotalTokens"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// HealthCheck asks the model for a single token.
func (l *LLM) HealthCheck(ctx context.Context) error {
	if _, err := llms.GenerateFromSinglePrompt(ctx, l.model, "ping", llms.WithMaxTokens(1)); err != nil {
		return fmt.Errorf("%s health check: %w", l.provider, err)
	}
	return nil
}
