package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/noa10/mataresit-sub011/internal/domain"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestComplete_PassesSystemPromptAndJSONMode(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        `{"order":[2,1]}`,
		GenerationInfo: map[string]any{"TotalTokens": 12},
	}}}}

	out, err := New(m, "llama3", "ollama").Complete(context.Background(), "rank these", domain.CompletionOptions{
		System:      "you rank documents",
		Temperature: 0.1,
		MaxTokens:   256,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"order":[2,1]}`, out.Text)
	assert.Equal(t, "llama3", out.Model)
	assert.Equal(t, 12, out.TotalTokens)
	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[1].Role)
	assert.True(t, m.opts.JSONMode)
	assert.Equal(t, 256, m.opts.MaxTokens)
}

func TestComplete_NoSystemPrompt(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}

	_, err := New(m, "llama3", "ollama").Complete(context.Background(), "hi", domain.CompletionOptions{})
	require.NoError(t, err)
	require.Len(t, m.messages, 1)
	assert.False(t, m.opts.JSONMode)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"provider error", &fakeModel{err: errors.New("connection refused")}},
		{"no choices", &fakeModel{resp: &llms.ContentResponse{}}},
		{"nil response", &fakeModel{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.model, "llama3", "ollama").Complete(context.Background(), "hi", domain.CompletionOptions{})
			assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	ok := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "pong"}}}}
	require.NoError(t, New(ok, "llama3", "ollama").HealthCheck(context.Background()))
	assert.Equal(t, 1, ok.opts.MaxTokens)

	down := &fakeModel{err: errors.New("connection refused")}
	assert.Error(t, New(down, "llama3", "ollama").HealthCheck(context.Background()))
}
