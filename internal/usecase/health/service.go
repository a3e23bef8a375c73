package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing; search still answers.
	Degraded Status = "degraded"
	// Unhealthy indicates a component every search needs is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	Database  = "database"
	Index     = "index"
	Embedding = "embedding"
	LLM       = "llm"
	Cache     = "cache"
)

// defaultTimeout bounds each probe so a hung provider cannot stall /health.
const defaultTimeout = 2 * time.Second

// Components lists the checkers to run. Nil ones are not reported.
// Database and Index are required; the rest degrade gracefully: search falls back
// to lexical tiers without embeddings, skips LLM stages, and runs uncached.
type Components struct {
	Database  Checker
	Index     Checker
	Embedding Checker
	LLM       Checker
	Cache     Checker
}

type probe struct {
	name     string
	check    Checker
	required bool
}

// Service coordinates health checks.
type Service struct {
	probes  []probe
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. A non-positive timeout uses the default.
func New(c Components, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	all := []probe{
		{Database, c.Database, true},
		{Index, c.Index, true},
		{Embedding, c.Embedding, false},
		{LLM, c.LLM, false},
		{Cache, c.Cache, false},
	}
	probes := make([]probe, 0, len(all))
	for _, p := range all {
		if p.check != nil {
			probes = append(probes, p)
		}
	}
	return &Service{probes: probes, timeout: timeout, logger: logger}
}

// Check probes every component concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.probes))
		status = Healthy
	)

	var g errgroup.Group
	for _, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := p.check.HealthCheck(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checks[p.name] = CheckOK
				return nil
			}
			checks[p.name] = CheckError
			switch {
			case p.required:
				status = Unhealthy
			case status == Healthy:
				status = Degraded
			}
			s.logger.Warn("Health check failed",
				zap.String("component", p.name), zap.Bool("required", p.required), zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Checks: checks}
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}
