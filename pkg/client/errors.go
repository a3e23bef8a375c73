package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noa10/mataresit-sub011/pkg/api"
)

// Sentinel errors. Use errors.Is() to check.
var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrPipelineFailed       = errors.New("pipeline failed")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    api.ErrorResponseCode
	Message string
	// Stage is the pipeline stage that failed, if the server named one.
	Stage string
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("search api: %d %s at %s: %s", e.Status, e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("search api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the response code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidQuery:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrEmbeddingUnavailable:
		return e.Code == api.ErrorResponseCodeEmbeddingUnavailable ||
			e.Code == api.ErrorResponseCodeDimensionMismatch
	case ErrPipelineFailed:
		return e.Stage != ""
	}
	return false
}
