package grant

import (
	"context"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/spec"
)

// Options configures a Service.
type Options struct {
	// AllowEmptyACLSpecs lets Specs without ACLs be read from their own environment.
	AllowEmptyACLSpecs bool

	// OnTheFlyAllowed is reported in SpecNotFoundError diagnostics.
	OnTheFlyAllowed bool

	// Tokens issues grant tokens. Default: unsigned tokens.
	Tokens *Tokens

	// Logger receives denial diagnostics. Default: no-op.
	Logger observe.Logger
}

// Service authorizes discovery contexts against Specs and tracks grants.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: denial is a false result, never an error. A missing Spec is
//   always a *SpecNotFoundError.
type Service struct {
	opts     Options
	registry *Registry
}

// NewService creates a grant service with an empty registry.
func NewService(opts Options) *Service {
	if opts.Tokens == nil {
		opts.Tokens = NewTokens(nil)
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &Service{opts: opts, registry: NewRegistry()}
}

// Registry returns the grant registry.
func (s *Service) Registry() *Registry { return s.registry }

// Authorize reports whether dc may read sp.
func (s *Service) Authorize(ctx context.Context, dc *discovery.Context, sp *spec.Spec) (bool, error) {
	if dc == nil {
		return false, ErrNilContext
	}
	if sp == nil {
		return false, &SpecNotFoundError{Ref: dc.Ref.Raw, EnvID: dc.EnvID, OnTheFlyAllowed: s.opts.OnTheFlyAllowed}
	}

	log := s.opts.Logger.WithSecret(observe.SecretMeta{EnvID: dc.EnvID, NaturalID: sp.NaturalID(), SpecID: sp.ID})

	if sp.ACLs == nil {
		if s.opts.AllowEmptyACLSpecs && dc.EnvID == sp.EnvID {
			return true, nil
		}
		log.Warn(ctx, "secret has no ACLs, access denied",
			observe.F("definition", dc.Location.Definition.String()),
			observe.F("empty_acls_allowed", s.opts.AllowEmptyACLSpecs),
		)
		return false, nil
	}

	if !Evaluate(sp.ACLs, dc) {
		log.Debug(ctx, "access denied by ACLs", observe.F("definition", dc.Location.Definition.String()))
		return false, nil
	}
	return true, nil
}

// Grant records dc as permitted. It is idempotent.
func (s *Service) Grant(dc *discovery.Context) {
	if dc != nil {
		s.registry.Add(dc)
	}
}

// Revoke removes dc's grant. It is idempotent.
func (s *Service) Revoke(dc *discovery.Context) {
	if dc != nil {
		s.registry.Remove(dc.ID)
	}
}

// AuthorizeAndGrant authorizes dc against sp and grants or revokes accordingly.
func (s *Service) AuthorizeAndGrant(ctx context.Context, dc *discovery.Context, sp *spec.Spec) (bool, error) {
	ok, err := s.Authorize(ctx, dc, sp)
	if err != nil || !ok {
		s.Revoke(dc)
		return false, err
	}
	s.Grant(dc)
	return true, nil
}

// Token returns the grant token identifying dc.
func (s *Service) Token(dc *discovery.Context) (string, error) {
	return s.opts.Tokens.Issue(dc)
}

// IsGranted reports whether the context identified by token is granted.
// Unverifiable tokens are never granted.
func (s *Service) IsGranted(token string) bool {
	_, ok := s.ContextFor(token)
	return ok
}

// ContextFor returns the granted context identified by token.
func (s *Service) ContextFor(token string) (*discovery.Context, bool) {
	id, err := s.opts.Tokens.ContextID(token)
	if err != nil {
		return nil, false
	}
	return s.registry.Get(id)
}
