package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/pipeline"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	healthuc "github.com/noa10/mataresit-sub011/internal/usecase/health"
	"github.com/noa10/mataresit-sub011/pkg/api"
)

// maxBodyBytes bounds a search request body.
const maxBodyBytes = 1 << 20

// searcher runs one search pipeline.
type searcher interface {
	Search(ctx context.Context, q query.Query) (pipeline.Response, error)
}

// healthChecker reports component health.
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search HTTP API.
type Server struct {
	search        searcher
	health        healthChecker
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search searcher, health healthChecker, defaults Defaults, logger *zap.Logger) *Server {
	s := &Server{
		search:   search,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		invalidQueryHandler,
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusBadGateway, api.ErrorResponseCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrDimensionMismatch,
			http.StatusBadGateway, api.ErrorResponseCodeDimensionMismatch),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, api.ErrorResponseCodeNotImplemented),
		stageErrorHandler,
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := QueryFromAPI(&req, ScopeFromContext(r.Context()), s.defaults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set(api.HeaderPipelineID, resp.PipelineID)
	writeJSON(w, http.StatusOK, ResponseToAPI(&resp))
}

// HealthCheck handles GET /health. A degraded report still serves 200:
// search keeps working without the optional providers.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, api.HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code api.ErrorResponseCode, message string) {
	writeJSON(w, status, api.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeStageError(w http.ResponseWriter, status int, code api.ErrorResponseCode, message, stage string) {
	resp := api.ErrorResponse{Code: code, Message: message}
	if stage != "" {
		resp.Stage = &stage
	}
	writeJSON(w, status, resp)
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingUnavailable,
		domain.ErrDimensionMismatch,
		domain.ErrNotImplemented,
		context.DeadlineExceeded,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code api.ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeStageError(w, status, code, msg, domain.FailedStage(err))
		return true
	}
}

// invalidQueryHandler reports validation failures with their detail; the text is built
// from request fields only.
func invalidQueryHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidQuery) {
		return false
	}
	writeError(w, http.StatusBadRequest, api.ErrorResponseCodeValidationFailed, err.Error())
	return true
}

// stageErrorHandler reports any other unrecoverable stage failure.
func stageErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	stage := domain.FailedStage(err)
	if stage == "" {
		return false
	}
	writeStageError(w, http.StatusInternalServerError, api.ErrorResponseCodePipelineFailed,
		"pipeline failed at "+stage+": "+msg, stage)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, api.ErrorResponseCodeInternalError, "internal error")
}
