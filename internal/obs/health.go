package obs

import (
	"context"
	"database/sql"
	"time"

	"github.com/hellofresh/health-go/v5"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by anything with a context-aware liveness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DatabaseCheck returns a readiness check for db, or nil when db is nil.
func DatabaseCheck(db *sql.DB) *health.Config {
	if db == nil {
		return nil
	}
	return &health.Config{
		Name:    "postgres",
		Timeout: checkTimeout,
		Check:   db.PingContext,
	}
}

// PingCheck wraps any Pinger as a named readiness check.
func PingCheck(name string, p Pinger) *health.Config {
	if p == nil {
		return nil
	}
	return &health.Config{
		Name:    name,
		Timeout: checkTimeout,
		Check:   p.PingContext,
	}
}

// NewHealth builds the readiness registry for a component. Nil checks are skipped.
func NewHealth(component, version string, checks ...*health.Config) (*health.Health, error) {
	opts := []health.Option{health.WithComponent(health.Component{Name: component, Version: version})}
	for _, c := range checks {
		if c != nil {
			opts = append(opts, health.WithChecks(*c))
		}
	}
	return health.New(opts...)
}
