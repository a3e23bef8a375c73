package health

import "context"

// Checker probes one component.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// DBPinger checks datastore connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Pinger adapts a datastore ping to Checker.
func Pinger(p DBPinger) Checker {
	return CheckerFunc(p.Ping)
}
