package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	mw     *Middleware
	logs   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
		logs:   &bytes.Buffer{},
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	h.mw = NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", h.logs))
	return h
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMiddleware_SuccessPath(t *testing.T) {
	h := newHarness(t)
	meta := SecretMeta{EnvID: "env-a", NaturalID: "redis-password", Provider: "mock"}

	outcome, err := h.mw.Wrap(func(ctx context.Context, m SecretMeta) (Outcome, error) {
		return OutcomeValue, nil
	})(context.Background(), meta)
	if err != nil || outcome != OutcomeValue {
		t.Fatalf("Wrap() = %v, %v", outcome, err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "secret.resolve.mock" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v", spans[0].Status())
	}
	var sawOutcome bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "secret.outcome" && kv.Value.AsString() == "value" {
			sawOutcome = true
		}
	}
	if !sawOutcome {
		t.Error("span missing secret.outcome attribute")
	}

	rm := h.collect(t)
	if got := sumOf(t, findMetric(rm, "secret.resolve.total")); got != 1 {
		t.Errorf("secret.resolve.total = %d, want 1", got)
	}
	if got := sumOf(t, findMetric(rm, "secret.resolve.errors")); got != 0 {
		t.Errorf("secret.resolve.errors = %d, want 0", got)
	}
	if findMetric(rm, "secret.resolve.duration_ms") == nil {
		t.Error("secret.resolve.duration_ms not recorded")
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("provider not found")

	_, err := h.mw.Wrap(func(ctx context.Context, m SecretMeta) (Outcome, error) {
		return OutcomeError, boom
	})(context.Background(), SecretMeta{Provider: "vault"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want passthrough", err)
	}

	span := h.spans.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", span.Status())
	}
	if len(span.Events()) == 0 {
		t.Error("error not recorded on span")
	}
	if got := sumOf(t, findMetric(h.collect(t), "secret.resolve.errors")); got != 1 {
		t.Errorf("secret.resolve.errors = %d, want 1", got)
	}
	if !bytes.Contains(h.logs.Bytes(), []byte(`"level":"error"`)) {
		t.Errorf("expected an error log line, got %s", h.logs.String())
	}
}

// TestMiddleware_ContainedErrorOutcome verifies an ERROR entry counts as an error without failing.
func TestMiddleware_ContainedErrorOutcome(t *testing.T) {
	h := newHarness(t)
	_, err := h.mw.Wrap(func(ctx context.Context, m SecretMeta) (Outcome, error) {
		return OutcomeError, nil
	})(context.Background(), SecretMeta{Provider: "vault"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sumOf(t, findMetric(h.collect(t), "secret.resolve.errors")); got != 1 {
		t.Errorf("secret.resolve.errors = %d, want 1", got)
	}
	if !bytes.Contains(h.logs.Bytes(), []byte(`"level":"warn"`)) {
		t.Errorf("expected a warn log line, got %s", h.logs.String())
	}
}

func TestMetrics_RecordRenewal(t *testing.T) {
	h := newHarness(t)
	meta := SecretMeta{EnvID: "env-a", Provider: "mock", Operation: "renew"}

	h.mw.Metrics().RecordRenewal(context.Background(), meta, nil)
	h.mw.Metrics().RecordRenewal(context.Background(), meta, errors.New("sealed"))

	rm := h.collect(t)
	if got := sumOf(t, findMetric(rm, "secret.renewal.total")); got != 2 {
		t.Errorf("secret.renewal.total = %d, want 2", got)
	}
	failures := findMetric(rm, "secret.renewal.failures")
	if got := sumOf(t, failures); got != 1 {
		t.Errorf("secret.renewal.failures = %d, want 1", got)
	}
	dp := failures.Data.(metricdata.Sum[int64]).DataPoints[0]
	if v, ok := dp.Attributes.Value(attribute.Key("secret.provider")); !ok || v.AsString() != "mock" {
		t.Errorf("secret.provider attribute = %v", v)
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	outcome, err := mw.Wrap(func(ctx context.Context, m SecretMeta) (Outcome, error) {
		time.Sleep(time.Millisecond)
		return OutcomeNotFound, nil
	})(context.Background(), SecretMeta{Provider: "p"})
	if err != nil || outcome != OutcomeNotFound {
		t.Fatalf("Wrap() = %v, %v", outcome, err)
	}
}

func TestSecretMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta SecretMeta
		want string
	}{
		{SecretMeta{Provider: "vault"}, "secret.resolve.vault"},
		{SecretMeta{Provider: "file", Operation: "watch"}, "secret.watch.file"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}
