package preprocessor

import (
	"context"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain"
)

// completer is the LLM the preprocessor classifies with.
type completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error)
}

// resultCache is the shared cache collaborator.
type resultCache interface {
	Load(ctx context.Context, stage, key string, out any) bool
	Store(ctx context.Context, stage, key string, v any, ttl time.Duration)
}
