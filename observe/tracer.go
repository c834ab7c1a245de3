package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SecretMeta identifies a secret operation for telemetry purposes.
// It never carries secret material.
type SecretMeta struct {
	EnvID     string // Tenant; empty for provider-wide operations
	NaturalID string // Cache key of the spec (name, or uri)
	Provider  string // Provider id (required)
	SpecID    string // Spec id (optional)
	Operation string // resolve|renew|watch; default resolve
}

// Op returns the operation name, defaulting to "resolve".
func (m SecretMeta) Op() string {
	if m.Operation == "" {
		return "resolve"
	}
	return m.Operation
}

// SpanName returns the deterministic span name: secret.<operation>.<provider>.
func (m SecretMeta) SpanName() string {
	return "secret." + m.Op() + "." + m.Provider
}

func (m SecretMeta) fields() []Field {
	fs := []Field{
		{Key: "secret.env_id", Value: m.EnvID},
		{Key: "secret.provider", Value: m.Provider},
	}
	if m.NaturalID != "" {
		fs = append(fs, Field{Key: "secret.natural_id", Value: m.NaturalID})
	}
	if m.SpecID != "" {
		fs = append(fs, Field{Key: "secret.spec_id", Value: m.SpecID})
	}
	if m.Operation != "" {
		fs = append(fs, Field{Key: "secret.operation", Value: m.Operation})
	}
	return fs
}

func (m SecretMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("secret.env_id", m.EnvID),
		attribute.String("secret.provider", m.Provider),
	}
	if m.NaturalID != "" {
		attrs = append(attrs, attribute.String("secret.natural_id", m.NaturalID))
	}
	if m.SpecID != "" {
		attrs = append(attrs, attribute.String("secret.spec_id", m.SpecID))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with secret-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a secret operation.
	StartSpan(ctx context.Context, meta SecretMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
// A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta SecretMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("secret.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
