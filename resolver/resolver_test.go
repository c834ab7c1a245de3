package resolver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/provider/mock"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *mock.Provider, *secret.ProviderRegistry) {
	t.Helper()
	p := mock.New(map[string]map[string]string{
		"mySecret": {"redisPassword": "redisadmin"},
		"empty":    {},
	})
	reg := secret.NewProviderRegistry()
	reg.Register("", "mock", p)
	return New(reg, Options{Now: func() time.Time { return epoch }}), p, reg
}

func mount(t *testing.T, s *Service, env, uri, key string) secret.Mount {
	t.Helper()
	m, err := s.MountFor(env, uri, key)
	if err != nil {
		t.Fatalf("MountFor(%q) error = %v", uri, err)
	}
	return m
}

func TestResolve_Outcomes(t *testing.T) {
	s, p, _ := setup(t)
	p.Fail("broken", errors.New("vault sealed"))

	tests := []struct {
		name string
		uri  string
		want cache.Entry
	}{
		{"value", "/mock/mySecret", cache.ValueEntry(secret.MapOf(map[string]string{"redisPassword": "redisadmin"}))},
		{"not found", "/mock/missing", cache.NotFoundEntry()},
		{"empty", "/mock/empty", cache.EmptyEntry()},
		{"provider error is contained", "/mock/broken", cache.ErrorEntry("vault sealed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(context.Background(), "env-a", mount(t, s, "env-a", tt.uri, ""), spec.Resolution{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_ProviderNotFound(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.Resolve(context.Background(), "env-a", secret.Mount{Provider: "vault", Location: "db"}, spec.Resolution{})
	if !errors.Is(err, secret.ErrProviderNotFound) {
		t.Fatalf("error = %v, want ErrProviderNotFound", err)
	}
	var nf *secret.ProviderNotFoundError
	if !errors.As(err, &nf) || nf.ProviderID != "vault" || nf.EnvID != "env-a" {
		t.Errorf("diagnostics = %+v", nf)
	}

	if _, err := s.MountFor("env-a", "/vault/db", "password"); !errors.Is(err, secret.ErrProviderNotFound) {
		t.Errorf("MountFor() error = %v", err)
	}
	if _, err := s.MountFor("env-a", "not-a-url", ""); !errors.Is(err, secret.ErrInvalidURL) {
		t.Errorf("MountFor() error = %v, want ErrInvalidURL", err)
	}
}

func TestResolve_TTLStamp(t *testing.T) {
	s, _, _ := setup(t)
	m := mount(t, s, "env-a", "/mock/mySecret", "redisPassword")

	got, _ := s.Resolve(context.Background(), "env-a", m, spec.Resolution{Type: spec.ResolutionTTL, Duration: time.Minute})
	if !got.ExpireAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("ExpireAt = %v, want %v", got.ExpireAt, epoch.Add(time.Minute))
	}
	if got.Expired(epoch.Add(59*time.Second)) || !got.Expired(epoch.Add(time.Minute)) {
		t.Error("entry must be live before its expiry and expired at it")
	}

	once, _ := s.Resolve(context.Background(), "env-a", m, spec.Resolution{Type: spec.ResolutionPoll, Duration: time.Minute})
	if !once.ExpireAt.IsZero() {
		t.Errorf("non-TTL resolution stamped %v", once.ExpireAt)
	}
}

func TestResolve_EnvProviderShadowsGlobal(t *testing.T) {
	s, _, reg := setup(t)
	reg.Register("env-b", "mock", mock.New(map[string]map[string]string{"mySecret": {"redisPassword": "tenant-b"}}))

	for env, want := range map[string]string{"env-a": "redisadmin", "env-b": "tenant-b"} {
		got, err := s.Resolve(context.Background(), env, mount(t, s, env, "/mock/mySecret", ""), spec.Resolution{})
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := got.Get("redisPassword"); v.Value() != want {
			t.Errorf("env %s resolved %q, want %q", env, v.Value(), want)
		}
	}
}

func TestResolveSpec(t *testing.T) {
	s, _, _ := setup(t)
	sp := &spec.Spec{ID: "1", Name: "redis-password", URI: "/mock/mySecret", Key: "redisPassword"}

	got, err := s.ResolveSpec(context.Background(), "env-a", sp)
	if err != nil || !got.IsValue() {
		t.Fatalf("ResolveSpec() = %v, %v", got, err)
	}
	if _, err := s.ResolveSpec(context.Background(), "env-a", nil); !errors.Is(err, spec.ErrNilSpec) {
		t.Errorf("nil spec error = %v", err)
	}
	bad := &spec.Spec{ID: "2", URI: "/nope/x"}
	if _, err := s.ResolveSpec(context.Background(), "env-a", bad); !errors.Is(err, secret.ErrProviderNotFound) {
		t.Errorf("unknown provider error = %v", err)
	}
}

func TestWatchSpec(t *testing.T) {
	s, p, _ := setup(t)
	sp := &spec.Spec{ID: "1", URI: "/mock/mySecret"}

	w, err := s.WatchSpec(context.Background(), "env-a", sp, secret.EventUpdated)
	if err != nil {
		t.Fatalf("WatchSpec() error = %v", err)
	}
	defer w.Stop()

	p.Put("mySecret", map[string]string{"redisPassword": "rotated"})
	select {
	case ev := <-w.Events():
		if v, _ := ev.Map.Get("redisPassword"); ev.Type != secret.EventUpdated || v.Value() != "rotated" {
			t.Errorf("event = %v %v", ev.Type, ev.Map)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

// hangingProvider never completes its resolutions.
type hangingProvider struct {
	secret.Provider
	calls atomic.Int32
}

func (h *hangingProvider) FromURL(u secret.URL) (secret.Mount, error) { return secret.DefaultMount(u), nil }

func (h *hangingProvider) Resolve(ctx context.Context, _ secret.Mount) *secret.Future {
	h.calls.Add(1)
	return secret.Go(ctx, func(ctx context.Context) (secret.Map, bool, error) {
		<-ctx.Done()
		return secret.Map{}, false, ctx.Err()
	})
}

func TestResolve_Guarded(t *testing.T) {
	reg := secret.NewProviderRegistry()
	slow := &hangingProvider{}
	reg.Register("", "slow", slow)
	s := New(reg, Options{})

	s.SetPolicy("", "slow", resilience.Policy{
		Timeout: 20 * time.Millisecond,
		Retry:   &resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond},
	})
	if s.Guard("env-a", "slow") == nil {
		t.Fatal("provider-wide guard must apply to every environment")
	}

	got, err := s.Resolve(context.Background(), "env-a", secret.Mount{Provider: "slow", Location: "x"}, spec.Resolution{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.IsError() || !strings.Contains(got.Error, "timed out") {
		t.Errorf("entry = %v, want timeout ERROR", got)
	}
	if slow.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", slow.calls.Load())
	}

	s.SetPolicy("", "slow", resilience.Policy{})
	if s.Guard("env-a", "slow") != nil {
		t.Error("zero policy must remove the guard")
	}
}

func TestResolve_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	p := mock.New(map[string]map[string]string{"mySecret": {"k": "v"}})
	p.Fail("broken", nil)
	reg := secret.NewProviderRegistry()
	reg.Register("", "mock", p)
	s := New(reg, Options{Middleware: observe.NewMiddleware(nil, metrics, nil)})

	for _, uri := range []string{"/mock/mySecret", "/mock/broken"} {
		if _, err := s.Resolve(context.Background(), "env-a", mount(t, s, "env-a", uri, ""), spec.Resolution{}); err != nil {
			t.Fatal(err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	if totals["secret.resolve.total"] != 2 || totals["secret.resolve.errors"] != 1 {
		t.Errorf("totals = %v", totals)
	}
}

func TestCircuits(t *testing.T) {
	s, p, _ := setup(t)
	p.Fail("broken", errors.New("vault sealed"))

	var transitions []string
	s.SetPolicy("env-b", "mock", resilience.Policy{Timeout: time.Second})
	s.SetPolicy("", "mock", resilience.Policy{
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
			OnStateChange: func(from, to resilience.State) {
				transitions = append(transitions, to.String())
			},
		},
	})

	m := mount(t, s, "env-a", "/mock/broken", "")
	for range 3 {
		if _, err := s.Resolve(context.Background(), "env-a", m, spec.Resolution{}); err != nil {
			t.Fatal(err)
		}
	}

	got := s.Circuits()
	if len(got) != 1 {
		t.Fatalf("Circuits() = %+v, want only the breaker-guarded provider", got)
	}
	if got[0].Provider != (secret.Registration{ID: "mock"}) || got[0].State != resilience.StateOpen || got[0].Failures != 2 {
		t.Errorf("Circuits()[0] = %+v", got[0])
	}
	if diff := cmp.Diff([]string{"open"}, transitions); diff != "" {
		t.Errorf("state changes mismatch (-want +got):\n%s", diff)
	}
	if p.Calls("broken") != 2 {
		t.Errorf("provider calls = %d, an open circuit must not call the provider", p.Calls("broken"))
	}
}
