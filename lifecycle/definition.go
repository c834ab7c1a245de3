package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/el"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/spec"
)

// DeployDefinition binds every reference found in def. Each reference gets
// a discovery context; literal references are authorized against their
// Spec, deploying one on the fly when allowed, and expression references
// are granted now and authorized when read. Each reference is rewritten in
// place into a template call reading it through the context's grant token.
//
// Contexts of a previous deploy of the same definition are dropped first.
// Unbound references are reported together; they read as absent.
func DeployDefinition[T any](ctx context.Context, s *Service, envID string, browser discovery.DefinitionBrowser[T], def T) error {
	s.UndeployDefinition(ctx, envID, browser.Definition(def))

	var errs []error
	browser.Browse(def, discovery.PayloadNotifierFunc(func(payload string, loc discovery.Location, update func(string)) {
		matches := spec.FindRefs(payload)
		if len(matches) == 0 {
			return
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			b.WriteString(payload[last:m.Start])
			last = m.End
			call, err := s.bind(ctx, envID, m.Raw, loc)
			if err != nil {
				errs = append(errs, err)
			}
			b.WriteString(call)
		}
		b.WriteString(payload[last:])
		update(b.String())
	}))
	return errors.Join(errs...)
}

// bind registers one reference and returns its replacement text. A
// reference that cannot be parsed is left as is.
func (s *Service) bind(ctx context.Context, envID, raw string, loc discovery.Location) (string, error) {
	ref, err := spec.Parse(raw)
	if err != nil {
		return raw, err
	}
	dc := discovery.NewContext(envID, ref, loc)
	token, err := s.grants.Token(dc)
	if err != nil {
		return raw, err
	}
	s.contexts.Register(dc)
	call := el.AccessorCall(token)

	if !ref.IsLiteral() {
		s.grants.Grant(dc)
		return call, nil
	}

	sp := s.specs.FromRef(envID, ref)
	if sp == nil && s.ShouldDeployOnTheFly(ref) {
		if sp, err = s.DeployOnTheFly(ctx, envID, ref); err != nil {
			return call, err
		}
	}
	if _, err := s.grants.AuthorizeAndGrant(ctx, dc, sp); err != nil {
		s.log.Warn(ctx, "secret reference not bound",
			observe.F("definition", loc.Definition.String()),
			observe.F("secret.env_id", envID),
			observe.Err(err),
		)
		return call, err
	}
	return call, nil
}

// UndeployDefinition revokes and forgets every context of def in envID. On
// the fly Specs no longer referenced by any context are undeployed. It
// returns the number of contexts removed.
func (s *Service) UndeployDefinition(ctx context.Context, envID string, def discovery.Definition) int {
	removed := s.contexts.RemoveByDefinition(envID, def)
	for _, dc := range removed {
		s.grants.Revoke(dc)
	}
	for _, dc := range removed {
		sp := s.specs.FromRef(dc.EnvID, dc.Ref)
		if sp == nil || !sp.OnTheFly || len(s.contexts.FindBySpec(sp)) > 0 {
			continue
		}
		if err := s.Undeploy(ctx, sp); err != nil && !errors.Is(err, ErrNotDeployed) {
			s.log.Warn(ctx, "on-the-fly secret undeploy failed", observe.Err(err))
		}
	}
	return len(removed)
}
