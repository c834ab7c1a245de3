// Package observe provides observability primitives for secret resolution.
//
// It is a pure instrumentation library: structured JSON logging with
// automatic redaction, OpenTelemetry tracing and metrics, and a Middleware
// that wraps provider calls with all three. Secret values never reach a log
// line, span attribute or metric label.
package observe
