// Package api holds the JSON wire types of the search HTTP API.
// The server and the Go client share them.
package api

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Identity headers set by the upstream gateway.
const (
	HeaderUserID = "X-User-ID"
	HeaderTeamID = "X-Team-ID"
	// HeaderPipelineID echoes the pipeline run identifier.
	HeaderPipelineID = "X-Pipeline-ID"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized         ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeEmbeddingUnavailable ErrorResponseCode = "embedding_unavailable"
	ErrorResponseCodeDimensionMismatch    ErrorResponseCode = "embedding_dimension_mismatch"
	ErrorResponseCodePipelineFailed       ErrorResponseCode = "pipeline_failed"
	ErrorResponseCodeNotImplemented       ErrorResponseCode = "not_implemented"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
	// Stage names the pipeline stage that could not be recovered.
	Stage *string `json:"stage,omitempty"`
}

// SearchFilters are the declared filters of a search request.
type SearchFilters struct {
	DateFrom    *openapi_types.Date `json:"date_from,omitempty"`
	DateTo      *openapi_types.Date `json:"date_to,omitempty"`
	AmountMin   *float64            `json:"amount_min,omitempty"`
	AmountMax   *float64            `json:"amount_max,omitempty"`
	Statuses    []string            `json:"statuses,omitempty"`
	SourceTypes []string            `json:"source_types,omitempty"`
}

// SearchWeights override the ranking weights.
type SearchWeights struct {
	Vector     float64 `json:"vector"`
	FullText   float64 `json:"full_text"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
}

// HistoryTurn is one prior conversation message.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserProfile carries locale hints for preprocessing.
type UserProfile struct {
	Currency string `json:"currency,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query               string         `json:"query"`
	Filters             *SearchFilters `json:"filters,omitempty"`
	Limit               *int           `json:"limit,omitempty"`
	Offset              *int           `json:"offset,omitempty"`
	SimilarityThreshold *float64       `json:"similarity_threshold,omitempty"`
	DiversityMode       *string        `json:"diversity_mode,omitempty"`
	Weights             *SearchWeights `json:"weights,omitempty"`
	ConversationHistory []HistoryTurn  `json:"conversation_history,omitempty"`
	UserProfile         *UserProfile   `json:"user_profile,omitempty"`
}

// Score is the per-signal breakdown of one result.
type Score struct {
	Vector     float64 `json:"vector"`
	FullText   float64 `json:"full_text"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Combined   float64 `json:"combined"`
	ExactMatch bool    `json:"exact_match"`
}

// SearchResultItem is one ranked result.
type SearchResultItem struct {
	Position    int            `json:"position"`
	SourceType  string         `json:"source_type"`
	SourceID    string         `json:"source_id"`
	ContentType string         `json:"content_type,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Similarity  float64        `json:"similarity"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	AccessLevel string         `json:"access_level,omitempty"`
	Score       Score          `json:"score"`
}

// Descriptor is a presentation hint for one result.
type Descriptor struct {
	Kind     string         `json:"kind"`
	SourceID string         `json:"source_id,omitempty"`
	Title    string         `json:"title"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Answer is the rendered headline plus descriptors.
type Answer struct {
	Text        string       `json:"text"`
	Descriptors []Descriptor `json:"descriptors"`
}

// SearchMetadata explains how the result set was produced.
type SearchMetadata struct {
	Method          string             `json:"method"`
	Strategy        string             `json:"strategy"`
	FallbackUsed    bool               `json:"fallback_used"`
	FallbacksUsed   []string           `json:"fallbacks_used"`
	ThresholdBypass bool               `json:"threshold_bypass"`
	Confidence      string             `json:"confidence"`
	RerankModel     string             `json:"rerank_model"`
	Intent          string             `json:"intent"`
	ExpandedQuery   string             `json:"expanded_query,omitempty"`
	SourcesSearched []string           `json:"sources_searched"`
	CacheHits       []string           `json:"cache_hits"`
	Warnings        []string           `json:"warnings,omitempty"`
	TimingsMs       map[string]float64 `json:"timings_ms"`
	DurationMs      float64            `json:"duration_ms"`
}

// SearchResponse is the body of a successful POST /v1/search.
// Success is false when no result matched; that is not an error.
type SearchResponse struct {
	PipelineID string             `json:"pipeline_id"`
	Success    bool               `json:"success"`
	Total      int                `json:"total"`
	Results    []SearchResultItem `json:"results"`
	Answer     Answer             `json:"answer"`
	Metadata   SearchMetadata     `json:"metadata"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
