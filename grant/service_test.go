package grant

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/spec"
)

func redisSpec(env string, acls *spec.ACLs) *spec.Spec {
	return &spec.Spec{ID: "s1", Name: "redis-password", URI: "/mock/mySecret", Key: "redisPassword", EnvID: env, ACLs: acls}
}

func TestService_Authorize(t *testing.T) {
	ctx := context.Background()
	dc := usage("api", "orders", "") // env-a

	tests := []struct {
		name       string
		allowEmpty bool
		sp         *spec.Spec
		want       bool
	}{
		{"no acls, same env, allowed", true, redisSpec("env-a", nil), true},
		{"no acls, other env", true, redisSpec("env-b", nil), false},
		{"no acls, provider-wide spec", true, redisSpec("", nil), false},
		{"no acls, not allowed", false, redisSpec("env-a", nil), false},
		{
			"acls match",
			false,
			redisSpec("env-b", &spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "api", IDs: []string{"orders"}}}}),
			true,
		},
		{
			"acls deny",
			true,
			redisSpec("env-a", &spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "api", IDs: []string{"billing"}}}}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{AllowEmptyACLSpecs: tt.allowEmpty})
			got, err := svc.Authorize(ctx, dc, tt.sp)
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Authorize_SpecNotFound(t *testing.T) {
	svc := NewService(Options{OnTheFlyAllowed: true})
	dc := usage("api", "orders", "")

	_, err := svc.Authorize(context.Background(), dc, nil)
	if !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("error = %v, want ErrSpecNotFound", err)
	}
	var nf *SpecNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error %T is not *SpecNotFoundError", err)
	}
	if nf.Ref != dc.Ref.Raw || nf.EnvID != "env-a" || !nf.OnTheFlyAllowed {
		t.Errorf("diagnostics = %+v", nf)
	}
	for _, part := range []string{dc.Ref.Raw, "env-a", "on_the_fly_allowed=true"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("message %q does not mention %q", err.Error(), part)
		}
	}

	if _, err := svc.Authorize(context.Background(), nil, redisSpec("env-a", nil)); !errors.Is(err, ErrNilContext) {
		t.Errorf("nil context error = %v", err)
	}
}

// TestService_DenialIsLogged verifies denial diagnostics go to the log, not the caller.
func TestService_DenialIsLogged(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(Options{Logger: observe.NewLoggerWithWriter("info", &buf)})

	ok, err := svc.Authorize(context.Background(), usage("api", "orders", ""), redisSpec("env-a", nil))
	if ok || err != nil {
		t.Fatalf("Authorize() = %v, %v", ok, err)
	}
	if !strings.Contains(buf.String(), `"secret.natural_id":"redis-password"`) {
		t.Errorf("denial not logged with natural id: %s", buf.String())
	}
}

func TestService_GrantLifecycle(t *testing.T) {
	svc := NewService(Options{AllowEmptyACLSpecs: true})
	dc := usage("api", "orders", "")
	token, err := svc.Token(dc)
	if err != nil {
		t.Fatal(err)
	}
	if token != dc.ID {
		t.Errorf("unsigned token = %q, want context id", token)
	}

	if svc.IsGranted(token) {
		t.Fatal("granted before Grant")
	}
	svc.Grant(dc)
	svc.Grant(dc)
	if !svc.IsGranted(token) || svc.Registry().Len() != 1 {
		t.Fatal("Grant must be idempotent and visible")
	}
	if got, ok := svc.ContextFor(token); !ok || got != dc {
		t.Errorf("ContextFor() = %v, %v", got, ok)
	}

	svc.Revoke(dc)
	svc.Revoke(dc)
	if svc.IsGranted(token) {
		t.Fatal("still granted after Revoke")
	}
}

func TestService_AuthorizeAndGrant(t *testing.T) {
	svc := NewService(Options{AllowEmptyACLSpecs: true})
	dc := usage("api", "orders", "")

	if ok, _ := svc.AuthorizeAndGrant(context.Background(), dc, redisSpec("env-a", nil)); !ok || !svc.IsGranted(dc.ID) {
		t.Fatal("expected grant")
	}

	// A spec change that denies the context revokes the earlier grant.
	denying := redisSpec("env-a", &spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "dictionary"}}})
	if ok, _ := svc.AuthorizeAndGrant(context.Background(), dc, denying); ok || svc.IsGranted(dc.ID) {
		t.Fatal("expected revoke")
	}

	if _, err := svc.AuthorizeAndGrant(context.Background(), dc, nil); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("error = %v", err)
	}
}

func TestRegistry_IDs(t *testing.T) {
	r := NewRegistry()
	a := &discovery.Context{ID: "b"}
	b := &discovery.Context{ID: "a"}
	if !r.Add(a) || !r.Add(b) || r.Add(a) {
		t.Fatal("Add() must report first insertion only")
	}
	if got := r.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("IDs() = %v", got)
	}
	if !r.Remove("a") || r.Remove("a") {
		t.Error("Remove() must report prior membership")
	}
}
