package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingUnavailable signals that no query vector could be produced.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrDimensionMismatch signals a provider vector longer than the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrLLMUnavailable signals a missing or unreachable LLM provider.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrMalformedLLMOutput signals an LLM response without a parseable JSON payload.
	ErrMalformedLLMOutput = errors.New("malformed llm output")
	// ErrPreprocessingDegraded marks a preprocessing result built from defaults.
	ErrPreprocessingDegraded = errors.New("preprocessing degraded")
	// ErrSearchTierFailed signals a single retrieval tier failure.
	ErrSearchTierFailed = errors.New("search tier failed")
	// ErrReRankFailed signals a re-ranking failure (always recovered by pass-through).
	ErrReRankFailed = errors.New("rerank failed")
	// ErrCacheMiss signals a cache lookup without a stored value.
	ErrCacheMiss = errors.New("cache miss")
	// ErrDecisionLocked signals an attempt to replace a routing decision mid-run.
	ErrDecisionLocked = errors.New("routing decision already set")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// StageError names the pipeline stage that could not be recovered.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the failing stage name.
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the stage name from a StageError chain. Returns "" if absent.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
