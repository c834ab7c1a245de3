package lifecycle

import (
	"context"
	"fmt"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/health"
	"github.com/jonwraymond/secretops/resilience"
)

// HealthCheckName is the name of the aggregated runtime checker.
const HealthCheckName = "secrets"

func (s *Service) registerHealthChecks() {
	s.health.Register(health.Named("secret.runtime", func(context.Context) health.Result {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return health.Unhealthy(ErrStopped, "secrets runtime stopped")
		}
		return health.Healthyf("secrets runtime running")
	}))

	s.health.Register(health.Named("secret.providers", func(context.Context) health.Result {
		regs := s.providers.List()
		if len(regs) == 0 {
			return health.Degradedf("no secret providers registered")
		}
		ids := make([]string, 0, len(regs))
		for _, r := range regs {
			ids = append(ids, r.String())
		}
		return health.Healthyf("%d providers registered", len(regs)).With("providers", ids)
	}))

	s.health.Register(health.Named("secret.circuits", func(context.Context) health.Result {
		circuits := s.resolver.Circuits()
		r := health.Healthyf("%d provider circuits closed", len(circuits))
		tripped := 0
		for _, c := range circuits {
			if c.State == resilience.StateClosed {
				continue
			}
			tripped++
			r = r.With(c.Provider.String(), map[string]any{
				"state":       c.State.String(),
				"failures":    c.Failures,
				"lastFailure": c.LastFailure,
			})
		}
		if tripped > 0 {
			r.Status = health.StatusDegraded
			r.Message = fmt.Sprintf("%d of %d provider circuits open", tripped, len(circuits))
		}
		return r
	}))

	s.health.Register(health.Named("secret.cache", func(context.Context) health.Result {
		var failed []string
		total := 0
		s.cache.Range(func(k cache.Key, e cache.Entry) bool {
			total++
			if e.IsError() {
				failed = append(failed, k.EnvID+"/"+k.NaturalID)
			}
			return true
		})
		if len(failed) > 0 {
			return health.Degradedf("%d of %d secrets failed to resolve", len(failed), total).With("failed", failed)
		}
		return health.Healthyf("%d secrets cached", total)
	}))

	s.health.Register(health.Named("secret.renewal", func(context.Context) health.Result {
		failing := s.renewal.Failing()
		if len(failing) == 0 {
			return health.Healthyf("%d renewals scheduled", s.renewal.Len())
		}
		r := health.Degradedf("%d renewals failing, serving last known good values", len(failing))
		for _, f := range failing {
			r = r.With(f.Key.EnvID+"/"+f.Key.NaturalID, map[string]any{
				"failures": f.Count,
				"since":    f.Since,
				"error":    f.LastError,
			})
		}
		return r
	}))
}

// Health returns a checker aggregating every runtime check. Provider trouble
// degrades the runtime; only a stopped runtime is unhealthy.
func (s *Service) Health() health.Checker {
	return s.health.Checker(HealthCheckName)
}

// HealthReport runs every runtime check.
func (s *Service) HealthReport(ctx context.Context) health.Report {
	return s.health.Run(ctx)
}
