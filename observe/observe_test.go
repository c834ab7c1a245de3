package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid minimal", Config{ServiceName: "secretops"}, nil},
		{"missing service name", Config{}, ErrMissingServiceName},
		{
			"unknown tracing exporter",
			Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}},
			ErrInvalidTracingExporter,
		},
		{
			"sample pct out of range",
			Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5}},
			ErrInvalidSamplePct,
		},
		{
			"unknown metrics exporter",
			Config{ServiceName: "s", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}},
			ErrInvalidMetricsExporter,
		},
		{
			"unknown log level",
			Config{ServiceName: "s", Logging: LoggingConfig{Enabled: true, Level: "trace"}},
			ErrInvalidLogLevel,
		},
		{
			"disabled subsystems are not checked",
			Config{ServiceName: "s", Tracing: TracingConfig{Exporter: "bogus"}},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "secretops"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("observer components must never be nil")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_StdoutEnabled(t *testing.T) {
	var out bytes.Buffer
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "secretops",
		Version:     "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
		Writer:      &out,
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}
	_, _ = mw.Wrap(func(ctx context.Context, m SecretMeta) (Outcome, error) {
		return OutcomeValue, nil
	})(context.Background(), SecretMeta{Provider: "mock"})
	obs.Logger().Info(context.Background(), "hello")

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("secret.resolve.mock")) {
		t.Errorf("span not exported to writer: %s", out.String())
	}
	if !bytes.Contains(out.Bytes(), []byte(`"msg":"hello"`)) {
		t.Errorf("log line not written to writer: %s", out.String())
	}
}

func TestChoiceError(t *testing.T) {
	err := (&Config{ServiceName: "s", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}}).Validate()

	var ce *ChoiceError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %T, want *ChoiceError", err)
	}
	want := `observe: invalid metrics exporter "statsd" (allowed: otlp, prometheus, stdout, none)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
