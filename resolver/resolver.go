package resolver

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// Providers looks up deployed providers. *secret.ProviderRegistry implements it.
type Providers interface {
	Get(envID, id string) (secret.Provider, error)
}

// Options configures a Service.
type Options struct {
	// Middleware traces and measures provider calls. Default: no-op.
	Middleware *observe.Middleware

	// Logger receives configuration defects. Default: no-op.
	Logger observe.Logger

	// Now is the clock used for TTL stamping. Default: time.Now.
	Now func() time.Time
}

// Service resolves mounts through deployed providers.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: only provider lookup failures and invalid URLs are returned;
//   every provider outcome is an Entry.
type Service struct {
	providers Providers
	mw        *observe.Middleware
	log       observe.Logger
	now       func() time.Time

	mu     sync.RWMutex
	guards map[secret.Registration]*resilience.Executor
}

// New creates a resolver over providers.
func New(providers Providers, opts Options) *Service {
	if opts.Middleware == nil {
		opts.Middleware = observe.NewMiddleware(nil, nil, nil)
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		providers: providers,
		mw:        opts.Middleware,
		log:       opts.Logger,
		now:       opts.Now,
		guards:    make(map[secret.Registration]*resilience.Executor),
	}
}

// SetPolicy guards calls to the provider registered under (envID, providerID).
// A zero policy removes the guard.
func (s *Service) SetPolicy(envID, providerID string, p resilience.Policy) {
	key := secret.Registration{EnvID: envID, ID: providerID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IsZero() {
		delete(s.guards, key)
		return
	}
	if p.CircuitBreaker != nil {
		cbc := *p.CircuitBreaker
		log := s.log.With(observe.F("secret.env_id", envID), observe.F("secret.provider", providerID))
		next := cbc.OnStateChange
		cbc.OnStateChange = func(from, to resilience.State) {
			log.Warn(context.Background(), "secret provider circuit "+to.String(), observe.F("from", from.String()))
			if next != nil {
				next(from, to)
			}
		}
		p.CircuitBreaker = &cbc
	}
	s.guards[key] = resilience.NewExecutor(p)
}

// Guard returns the executor guarding providerID in envID, falling back to
// the provider-wide guard. It returns nil when the provider is unguarded.
func (s *Service) Guard(envID, providerID string) *resilience.Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.guards[secret.Registration{EnvID: envID, ID: providerID}]; ok {
		return g
	}
	return s.guards[secret.Registration{ID: providerID}]
}

// CircuitState is the breaker state of one guarded provider.
type CircuitState struct {
	Provider    secret.Registration
	State       resilience.State
	Failures    int
	LastFailure time.Time
}

// Circuits returns the state of every provider guarded by a circuit
// breaker, ordered by environment then provider id.
func (s *Service) Circuits() []CircuitState {
	s.mu.RLock()
	out := make([]CircuitState, 0, len(s.guards))
	for reg, g := range s.guards {
		cb := g.CircuitBreaker()
		if cb == nil {
			continue
		}
		n, last := cb.Failures()
		out = append(out, CircuitState{Provider: reg, State: cb.State(), Failures: n, LastFailure: last})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b CircuitState) int {
		return cmp.Or(strings.Compare(a.Provider.EnvID, b.Provider.EnvID), strings.Compare(a.Provider.ID, b.Provider.ID))
	})
	return out
}

// ToSecretMount lets the provider named by u translate it into a mount.
func (s *Service) ToSecretMount(envID string, u secret.URL) (secret.Mount, error) {
	p, err := s.providers.Get(envID, u.Provider)
	if err != nil {
		return secret.Mount{}, err
	}
	return p.FromURL(u)
}

// MountFor parses uri, addresses key and translates the result into a mount.
func (s *Service) MountFor(envID, uri, key string) (secret.Mount, error) {
	u, err := secret.ParseURL(uri)
	if err != nil {
		return secret.Mount{}, err
	}
	return s.ToSecretMount(envID, u.WithKey(key))
}

// Resolve resolves m for envID. A TTL resolution stamps the value with
// now + duration.
func (s *Service) Resolve(ctx context.Context, envID string, m secret.Mount, res spec.Resolution) (cache.Entry, error) {
	return s.resolve(ctx, envID, m, res, observe.SecretMeta{EnvID: envID, Provider: m.Provider})
}

// ResolveSpec resolves the bundle bound by sp in sp's environment.
func (s *Service) ResolveSpec(ctx context.Context, envID string, sp *spec.Spec) (cache.Entry, error) {
	if sp == nil {
		return cache.Entry{}, spec.ErrNilSpec
	}
	m, err := s.MountFor(envID, sp.URI, sp.Key)
	if err != nil {
		s.log.Error(ctx, "cannot build secret mount",
			observe.F("secret.env_id", envID), observe.F("secret.natural_id", sp.NaturalID()), observe.Err(err))
		return cache.Entry{}, err
	}
	return s.resolve(ctx, envID, m, sp.Resolution, observe.SecretMeta{
		EnvID:     envID,
		NaturalID: sp.NaturalID(),
		Provider:  m.Provider,
		SpecID:    sp.ID,
	})
}

// WatchSpec subscribes to change events of the bundle bound by sp.
func (s *Service) WatchSpec(ctx context.Context, envID string, sp *spec.Spec, types ...secret.EventType) (*secret.Watch, error) {
	if sp == nil {
		return nil, spec.ErrNilSpec
	}
	m, err := s.MountFor(envID, sp.URI, sp.Key)
	if err != nil {
		return nil, err
	}
	p, err := s.providers.Get(envID, m.Provider)
	if err != nil {
		return nil, err
	}
	return p.Watch(ctx, m, types...)
}

type bundle struct {
	m     secret.Map
	found bool
}

func (s *Service) resolve(ctx context.Context, envID string, m secret.Mount, res spec.Resolution, meta observe.SecretMeta) (cache.Entry, error) {
	p, err := s.providers.Get(envID, m.Provider)
	if err != nil {
		s.log.WithSecret(meta).Error(ctx, "secret provider not found", observe.Err(err))
		return cache.Entry{}, err
	}
	guard := s.Guard(envID, m.Provider)

	var entry cache.Entry
	_, _ = s.mw.Wrap(func(ctx context.Context, _ observe.SecretMeta) (observe.Outcome, error) {
		b, err := resilience.Call(ctx, guard, func(ctx context.Context) (bundle, error) {
			data, found, err := p.Resolve(ctx, m).Await(ctx)
			return bundle{m: data, found: found}, err
		})
		entry = s.toEntry(b, err, res)
		return outcomeOf(entry), nil
	})(ctx, meta)
	return entry, nil
}

func (s *Service) toEntry(b bundle, err error, res spec.Resolution) cache.Entry {
	switch {
	case err != nil:
		return cache.ErrorEntry(errorMessage(err))
	case !b.found:
		return cache.NotFoundEntry()
	case b.m.IsEmpty():
		return cache.EmptyEntry()
	}
	m := b.m
	if res.Type == spec.ResolutionTTL && res.Duration > 0 {
		m = m.WithExpireAt(s.now().Add(res.Duration))
	}
	return cache.ValueEntry(m)
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "secret resolution timed out: " + err.Error()
	}
	return err.Error()
}

func outcomeOf(e cache.Entry) observe.Outcome {
	switch e.Kind {
	case cache.KindValue:
		return observe.OutcomeValue
	case cache.KindNotFound:
		return observe.OutcomeNotFound
	case cache.KindEmpty:
		return observe.OutcomeEmpty
	default:
		return observe.OutcomeError
	}
}
