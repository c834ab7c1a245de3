package env

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/secretops/secret"
)

func resolve(t *testing.T, p *Provider, raw string) (map[string]string, bool) {
	t.Helper()
	u, err := secret.ParseURL(raw)
	if err != nil {
		t.Fatal(err)
	}
	m, err := p.FromURL(u)
	if err != nil {
		t.Fatal(err)
	}
	got, found, err := p.Resolve(context.Background(), m).Await(context.Background())
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", raw, err)
	}
	out := make(map[string]string)
	for k, v := range got.AsMap() {
		out[k] = v.Value()
	}
	return out, found
}

func TestProvider_Resolve(t *testing.T) {
	t.Setenv("APP_REDIS_PASSWORD", "redisadmin")
	t.Setenv("APP_DB_USER", "admin")
	t.Setenv("APP_DB_PASS", "pw")

	sp, err := Factory(map[string]any{"prefix": "APP_"})
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	p := sp.(*Provider)

	got, found := resolve(t, p, "/env/REDIS_PASSWORD")
	if !found {
		t.Fatal("expected variable to be found")
	}
	if diff := cmp.Diff(map[string]string{"APP_REDIS_PASSWORD": "redisadmin"}, got); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}

	got, found = resolve(t, p, "/env/DB_?prefix=true")
	if !found {
		t.Fatal("expected prefixed variables to be found")
	}
	if diff := cmp.Diff(map[string]string{"USER": "admin", "PASS": "pw"}, got); diff != "" {
		t.Errorf("prefix bundle mismatch (-want +got):\n%s", diff)
	}

	if _, found = resolve(t, p, "/env/NOT_SET_ANYWHERE"); found {
		t.Error("unset variable should not be found")
	}
}

func TestProvider_WatchUnsupported(t *testing.T) {
	p := New(Config{})
	if _, err := p.Watch(context.Background(), secret.Mount{}); !errors.Is(err, secret.ErrWatchUnsupported) {
		t.Fatalf("Watch() error = %v", err)
	}
}
