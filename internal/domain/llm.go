package domain

import "context"

// LLM is the text-in/text-out completion contract. Callers must treat the
// returned text as untrusted: it may wrap JSON in markdown fences or prose.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (Completion, error)
}

// CompletionOptions tunes a single completion call.
type CompletionOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response when it supports one.
	JSON bool
}

// Completion is the raw provider answer.
type Completion struct {
	Text        string
	Model       string
	TotalTokens int
}
