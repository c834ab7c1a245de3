package lifecycle

import (
	"context"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// ContextFor returns the granted discovery context identified by token.
func (s *Service) ContextFor(token string) (*discovery.Context, bool) {
	return s.grants.ContextFor(token)
}

// Read returns the secret addressed by ref on behalf of dc, a granted
// context. ref must be literal; it is authorized again unless it is dc's
// own literal reference. A registered Spec missing from the cache, while
// still deploying or after an eviction, is resolved once for all concurrent
// readers. Missing, denied and failed secrets all read as absent.
func (s *Service) Read(ctx context.Context, dc *discovery.Context, ref spec.Ref) (secret.Secret, bool) {
	if dc == nil || !ref.IsLiteral() {
		return secret.Secret{}, false
	}

	sp := s.specs.FromRef(dc.EnvID, ref)
	if sp == nil && s.ShouldDeployOnTheFly(ref) {
		var err error
		if sp, err = s.DeployOnTheFly(ctx, dc.EnvID, ref); err != nil {
			s.log.Warn(ctx, "on-the-fly secret deploy failed", observe.F("context", dc.ID), observe.Err(err))
			return secret.Secret{}, false
		}
	}
	if sp == nil {
		s.log.Debug(ctx, "secret spec not found", observe.F("context", dc.ID), observe.F("secret.env_id", dc.EnvID))
		return secret.Secret{}, false
	}

	if !dc.Ref.IsLiteral() || dc.Ref.String() != ref.String() {
		if ok, _ := s.grants.Authorize(ctx, dc, sp); !ok {
			return secret.Secret{}, false
		}
	}

	e, ok := s.entry(ctx, sp)
	if !ok || !e.IsValue() {
		return secret.Secret{}, false
	}
	key := keyFor(sp, ref)
	if key == "" && len(e.Value) == 1 {
		for _, v := range e.Value {
			return v, true
		}
	}
	return e.Get(key)
}

// keyFor returns the bundle key ref selects inside sp.
func keyFor(sp *spec.Spec, ref spec.Ref) string {
	switch {
	case ref.SecondaryType == spec.RefTypeKey:
		return ref.Secondary.Value
	case ref.SecondaryType == spec.RefTypeName:
		return sp.KeyFor(ref.Secondary.Value)
	case ref.MainType == spec.RefTypeName:
		return sp.KeyFor(ref.Main.Value)
	}
	return sp.Key
}

// entry returns the cached entry of sp, resolving it on a miss. Resolutions
// racing an undeploy are evicted again.
func (s *Service) entry(ctx context.Context, sp *spec.Spec) (cache.Entry, bool) {
	key := keyOf(sp)
	if e, ok := s.cache.Get(ctx, key.EnvID, key.NaturalID); ok {
		return e, true
	}

	var resolveErr error
	e, err := s.cache.ComputeIfAbsent(ctx, key.EnvID, key.NaturalID, func(ctx context.Context) cache.Entry {
		entry, err := s.resolver.ResolveSpec(ctx, sp.EnvID, sp)
		if err != nil {
			resolveErr = err
			return cache.ErrorEntry(err.Error())
		}
		return entry
	})
	if err != nil {
		s.log.WithSecret(metaOf(sp)).Warn(ctx, "secret read-through failed", observe.Err(err))
		return cache.Entry{}, false
	}
	if resolveErr != nil {
		s.log.WithSecret(metaOf(sp)).Warn(ctx, "secret read-through failed", observe.Err(resolveErr))
	}
	if s.registered(sp) != sp {
		_ = s.cache.Evict(ctx, key.EnvID, key.NaturalID)
		return cache.Entry{}, false
	}
	return e, true
}
