package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome classifies the result of a resolution.
type Outcome string

const (
	OutcomeValue    Outcome = "value"
	OutcomeNotFound Outcome = "not_found"
	OutcomeEmpty    Outcome = "empty"
	OutcomeError    Outcome = "error"
)

// Metrics records resolution and renewal metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordResolve records one provider resolution.
	RecordResolve(ctx context.Context, meta SecretMeta, duration time.Duration, outcome Outcome, err error)

	// RecordRenewal records one renewal tick; err is non-nil when the tick failed.
	RecordRenewal(ctx context.Context, meta SecretMeta, err error)
}

type metricsImpl struct {
	resolveTotal    metric.Int64Counter
	resolveErrors   metric.Int64Counter
	resolveDuration metric.Float64Histogram
	renewalTotal    metric.Int64Counter
	renewalFailures metric.Int64Counter
}

// NewMetrics creates the resolution instruments on meter.
// A nil meter yields instruments that record nothing.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}

	m := &metricsImpl{}
	var err error

	if m.resolveTotal, err = meter.Int64Counter(
		"secret.resolve.total",
		metric.WithDescription("Total number of secret resolutions"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.resolveErrors, err = meter.Int64Counter(
		"secret.resolve.errors",
		metric.WithDescription("Total number of failed secret resolutions"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.resolveDuration, err = meter.Float64Histogram(
		"secret.resolve.duration_ms",
		metric.WithDescription("Secret resolution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.renewalTotal, err = meter.Int64Counter(
		"secret.renewal.total",
		metric.WithDescription("Total number of renewal ticks"),
		metric.WithUnit("{tick}"),
	); err != nil {
		return nil, err
	}

	if m.renewalFailures, err = meter.Int64Counter(
		"secret.renewal.failures",
		metric.WithDescription("Renewal ticks that kept the last known good value"),
		metric.WithUnit("{tick}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordResolve(ctx context.Context, meta SecretMeta, duration time.Duration, outcome Outcome, err error) {
	opt := metric.WithAttributes(
		attribute.String("secret.env_id", meta.EnvID),
		attribute.String("secret.provider", meta.Provider),
		attribute.String("secret.outcome", string(outcome)),
	)

	m.resolveTotal.Add(ctx, 1, opt)
	if err != nil || outcome == OutcomeError {
		m.resolveErrors.Add(ctx, 1, opt)
	}
	m.resolveDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordRenewal(ctx context.Context, meta SecretMeta, err error) {
	opt := metric.WithAttributes(
		attribute.String("secret.env_id", meta.EnvID),
		attribute.String("secret.provider", meta.Provider),
	)
	m.renewalTotal.Add(ctx, 1, opt)
	if err != nil {
		m.renewalFailures.Add(ctx, 1, opt)
	}
}
