package health

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// Status is the state of one concern, ordered by severity.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means secrets are still served, possibly stale.
	StatusDegraded
	// StatusUnhealthy means the runtime cannot serve secrets.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status name in JSON and YAML reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Worst returns the more severe of s and other.
func (s Status) Worst(other Status) Status {
	return max(s, other)
}

// Result is the outcome of one check.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`

	// Details holds counters and identifiers. It never holds secret values.
	Details map[string]any `json:"details,omitempty"`

	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Error     error         `json:"-"`
}

func result(s Status, format string, args []any) Result {
	return Result{Status: s, Message: fmt.Sprintf(format, args...), Timestamp: time.Now()}
}

// Healthyf creates a healthy result with a formatted message.
func Healthyf(format string, args ...any) Result {
	return result(StatusHealthy, format, args)
}

// Degradedf creates a degraded result with a formatted message.
func Degradedf(format string, args ...any) Result {
	return result(StatusDegraded, format, args)
}

// Unhealthy creates an unhealthy result carrying err.
func Unhealthy(err error, format string, args ...any) Result {
	r := result(StatusUnhealthy, format, args)
	r.Error = err
	return r
}

// With returns a copy of r with one more detail.
func (r Result) With(key string, value any) Result {
	d := make(map[string]any, len(r.Details)+1)
	maps.Copy(d, r.Details)
	d[key] = value
	r.Details = d
	return r
}

// Checker inspects one concern of the runtime.
//
// Contract:
// - Concurrency: Check may be called concurrently.
// - Context: Check should return promptly once ctx is done.
// - Errors: failures are reported in the Result, never by panicking.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckFunc is the body of a named check.
type CheckFunc func(ctx context.Context) Result

// Named wraps fn as a Checker called name.
func Named(name string, fn CheckFunc) Checker {
	return named{name: name, fn: fn}
}

type named struct {
	name string
	fn   CheckFunc
}

func (n named) Name() string                     { return n.name }
func (n named) Check(ctx context.Context) Result { return n.fn(ctx) }
