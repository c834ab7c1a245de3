package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/config"
	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/grant"
	"github.com/jonwraymond/secretops/health"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/provider"
	"github.com/jonwraymond/secretops/renewal"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/resolver"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// deployConcurrency bounds DeployAll.
const deployConcurrency = 8

// State is the deployment state of a Spec.
type State int

const (
	StateUndeployed State = iota
	StateDeploying
	StateDeployed
)

func (s State) String() string {
	switch s {
	case StateDeploying:
		return "DEPLOYING"
	case StateDeployed:
		return "DEPLOYED"
	default:
		return "UNDEPLOYED"
	}
}

// Options configures a Service.
type Options struct {
	// AllowEmptyACLSpecs lets Specs without ACLs be read from their own environment.
	AllowEmptyACLSpecs bool

	// OnTheFlyEnabled allows Specs to be synthesized from literal uri references.
	OnTheFlyEnabled bool

	// CheckBeforeTTL is the default renewal lead time of TTL Specs.
	CheckBeforeTTL time.Duration

	// RenewalRetry retries failing renewal ticks. Nil means one attempt.
	RenewalRetry *resilience.RetryConfig

	// SigningKey signs grant tokens. Empty issues opaque context ids.
	SigningKey []byte

	// Factories builds providers from declarations. Default: the built-in plugins.
	Factories *secret.Registry

	// Middleware traces and measures provider calls. Default: no-op.
	Middleware *observe.Middleware

	// Logger receives administrative events. Default: no-op.
	Logger observe.Logger

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the runtime options of c.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		AllowEmptyACLSpecs: c.AllowEmptyACLSpecs,
		OnTheFlyEnabled:    c.OnTheFlySpecs.Enabled,
		CheckBeforeTTL:     c.Renewal.CheckBeforeTTL,
		RenewalRetry:       c.Renewal.Retry.RetryConfig(),
		SigningKey:         []byte(c.Grants.SigningKey),
	}
}

// Service is the secrets runtime.
//
// Contract:
// - Concurrency: safe for concurrent use. Deploys of different natural ids
//   run in parallel; Deploy and Undeploy of one Spec must not race.
// - Errors: provider failures are contained in cache entries. Deploy fails
//   on invalid Specs and missing providers.
type Service struct {
	opts Options
	log  observe.Logger

	specs     *spec.EnvAwareRegistry
	providers *secret.ProviderRegistry
	factories *secret.Registry
	contexts  *discovery.Registry
	grants    *grant.Service
	resolver  *resolver.Service
	cache     *cache.MemoryCache
	renewal   *renewal.Service
	health    *health.Aggregator

	mu      sync.Mutex
	states  map[cache.Key]State
	stopped bool
}

// New creates a runtime with empty registries.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Factories == nil {
		opts.Factories = provider.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var metrics observe.Metrics
	if opts.Middleware != nil {
		metrics = opts.Middleware.Metrics()
	}

	s := &Service{
		opts:      opts,
		log:       opts.Logger,
		specs:     spec.NewEnvAwareRegistry(),
		providers: secret.NewProviderRegistry(),
		factories: opts.Factories,
		contexts:  discovery.NewRegistry(),
		cache:     cache.NewMemoryCache(),
		health:    health.NewAggregator(health.DefaultTimeout),
		states:    make(map[cache.Key]State),
	}
	s.grants = grant.NewService(grant.Options{
		AllowEmptyACLSpecs: opts.AllowEmptyACLSpecs,
		OnTheFlyAllowed:    opts.OnTheFlyEnabled,
		Tokens:             grant.NewTokens(opts.SigningKey),
		Logger:             opts.Logger,
	})
	s.resolver = resolver.New(s.providers, resolver.Options{
		Middleware: opts.Middleware,
		Logger:     opts.Logger,
		Now:        opts.Now,
	})
	s.renewal = renewal.New(s.resolver, s.cache, renewal.Options{
		CheckBeforeTTL: opts.CheckBeforeTTL,
		Retry:          opts.RenewalRetry,
		Logger:         opts.Logger,
		Metrics:        metrics,
		Now:            opts.Now,
	})
	s.registerHealthChecks()
	return s
}

// Specs returns the Spec registry.
func (s *Service) Specs() *spec.EnvAwareRegistry { return s.specs }

// Providers returns the provider registry.
func (s *Service) Providers() *secret.ProviderRegistry { return s.providers }

// Contexts returns the discovery context registry.
func (s *Service) Contexts() *discovery.Registry { return s.contexts }

// Grants returns the grant service.
func (s *Service) Grants() *grant.Service { return s.grants }

// Resolver returns the resolver.
func (s *Service) Resolver() *resolver.Service { return s.resolver }

// Cache returns the resolution cache.
func (s *Service) Cache() *cache.MemoryCache { return s.cache }

// Renewal returns the renewal scheduler.
func (s *Service) Renewal() *renewal.Service { return s.renewal }

// Start starts background renewal.
func (s *Service) Start() {
	s.renewal.Start()
}

// Stop cancels every renewal and closes every provider.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return errors.Join(s.renewal.Stop(ctx), s.providers.Close())
}

// Apply registers the providers of c, then deploys its Specs.
func (s *Service) Apply(ctx context.Context, c *config.Config) error {
	if err := s.ConfigureProviders(c.Providers); err != nil {
		return err
	}
	specs, err := c.DeclaredSpecs()
	if err != nil {
		return err
	}
	return s.DeployAll(ctx, specs)
}

// State returns the deployment state of (envID, naturalID).
func (s *Service) State(envID, naturalID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[cache.Key{EnvID: envID, NaturalID: naturalID}]
}

func (s *Service) setState(key cache.Key, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == StateUndeployed {
		delete(s.states, key)
		return
	}
	s.states[key] = st
}

func keyOf(sp *spec.Spec) cache.Key {
	return cache.Key{EnvID: sp.EnvID, NaturalID: sp.NaturalID()}
}

func metaOf(sp *spec.Spec) observe.SecretMeta {
	meta := observe.SecretMeta{EnvID: sp.EnvID, NaturalID: sp.NaturalID(), SpecID: sp.ID}
	if u, err := secret.ParseURL(sp.URI); err == nil {
		meta.Provider = u.Provider
	}
	return meta
}

// registered returns the Spec registered under sp's id in sp's own
// environment.
func (s *Service) registered(sp *spec.Spec) *spec.Spec {
	reg := s.specs.Registry(sp.EnvID)
	if reg == nil {
		return nil
	}
	return reg.FromID(sp.ID)
}

// Deploy registers sp, resolves it into the cache and schedules its renewal.
// Deploying a Spec id again replaces the previous deployment.
func (s *Service) Deploy(ctx context.Context, sp *spec.Spec) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	key := keyOf(sp)
	log := s.log.WithSecret(metaOf(sp))

	s.setState(key, StateDeploying)
	s.renewal.Cancel(key.EnvID, key.NaturalID)
	// A redeploy under another natural id drops the old binding entirely.
	var renamed *spec.Spec
	if old := s.registered(sp); old != nil {
		if oldKey := keyOf(old); oldKey != key {
			s.release(ctx, old, oldKey)
			renamed = old
		}
		s.specs.Unregister(old)
	}
	if renamed != nil {
		defer s.reauthorize(ctx, renamed)
	}
	s.specs.Register(sp)

	entry, err := s.resolver.ResolveSpec(ctx, sp.EnvID, sp)
	if err != nil {
		s.specs.Unregister(sp)
		s.setState(key, StateUndeployed)
		log.Error(ctx, "secret deploy failed", observe.Err(err))
		return fmt.Errorf("lifecycle: deploy %q: %w", key.NaturalID, err)
	}
	if err := s.cache.Put(ctx, key.EnvID, key.NaturalID, entry); err != nil {
		s.specs.Unregister(sp)
		s.setState(key, StateUndeployed)
		log.Error(ctx, "secret deploy failed", observe.Err(err))
		return fmt.Errorf("lifecycle: deploy %q: %w", key.NaturalID, err)
	}

	if sp.Resolution.NeedsRenewal() {
		if err := s.renewal.Schedule(ctx, sp.EnvID, sp, entry); err != nil {
			log.Warn(ctx, "secret renewal not scheduled", observe.Err(err))
		}
	}
	s.setState(key, StateDeployed)
	log.Info(ctx, "secret deployed",
		observe.F("outcome", entry.Kind.String()),
		observe.F("resolution", sp.Resolution.Type.String()),
	)

	s.reauthorize(ctx, sp)
	return nil
}

// Undeploy cancels renewal, evicts the cache entry and unregisters sp.
func (s *Service) Undeploy(ctx context.Context, sp *spec.Spec) error {
	if sp == nil {
		return spec.ErrNilSpec
	}
	cur := s.registered(sp)
	if cur == nil {
		return fmt.Errorf("%w: %s", ErrNotDeployed, sp.NaturalID())
	}

	s.release(ctx, cur, keyOf(cur))
	s.specs.Unregister(cur)
	s.log.WithSecret(metaOf(cur)).Info(ctx, "secret undeployed")

	s.reauthorize(ctx, cur)
	return nil
}

// release cancels the renewal of key, evicts its cache entry and marks it
// undeployed. The renewal is cancelled first so no tick writes back.
func (s *Service) release(ctx context.Context, sp *spec.Spec, key cache.Key) {
	s.renewal.Cancel(key.EnvID, key.NaturalID)
	if err := s.cache.Evict(ctx, key.EnvID, key.NaturalID); err != nil {
		s.log.WithSecret(metaOf(sp)).Warn(ctx, "secret cache eviction failed", observe.Err(err))
	}
	s.setState(key, StateUndeployed)
}

// DeployAll deploys specs concurrently and reports every failure.
func (s *Service) DeployAll(ctx context.Context, specs []*spec.Spec) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deployConcurrency)
	for _, sp := range specs {
		g.Go(func() error {
			if err := s.Deploy(ctx, sp); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// reauthorize re-evaluates every context referencing sp against whatever
// Spec the context's reference now resolves to.
func (s *Service) reauthorize(ctx context.Context, sp *spec.Spec) {
	for _, dc := range s.contexts.FindBySpec(sp) {
		cur := s.specs.FromRef(dc.EnvID, dc.Ref)
		if cur == nil {
			s.grants.Revoke(dc)
			continue
		}
		if _, err := s.grants.AuthorizeAndGrant(ctx, dc, cur); err != nil {
			s.log.Warn(ctx, "re-authorization failed", observe.F("context", dc.ID), observe.Err(err))
		}
	}
}

// ShouldDeployOnTheFly reports whether ref may be turned into a Spec
// without a declaration: on-the-fly deployment is enabled and ref is a
// literal uri reference, optionally with a key. Refs with an expression key
// never qualify here; readers evaluate them into literal refs first, which
// then qualify on their own.
func (s *Service) ShouldDeployOnTheFly(ref spec.Ref) bool {
	return s.opts.OnTheFlyEnabled &&
		ref.IsLiteral() &&
		ref.MainType == spec.RefTypeURI &&
		ref.SecondaryType != spec.RefTypeName
}

// DeployOnTheFly synthesizes a Spec from ref and deploys it in envID. A
// Spec already matching ref is returned as is.
func (s *Service) DeployOnTheFly(ctx context.Context, envID string, ref spec.Ref) (*spec.Spec, error) {
	if !s.ShouldDeployOnTheFly(ref) {
		return nil, fmt.Errorf("%w: %s", ErrOnTheFlyNotAllowed, ref.Raw)
	}
	if sp := s.specs.FromRef(envID, ref); sp != nil {
		return sp, nil
	}
	sp := ref.ToRuntimeSpec(envID)
	if err := s.Deploy(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}
