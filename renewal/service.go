package renewal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// DefaultCheckBeforeTTL is the lead time before expiry at which TTL secrets
// are renewed when neither the Spec nor the Options set one.
const DefaultCheckBeforeTTL = 5 * time.Second

// Resolver resolves and watches Specs. *resolver.Service implements it.
type Resolver interface {
	ResolveSpec(ctx context.Context, envID string, sp *spec.Spec) (cache.Entry, error)
	WatchSpec(ctx context.Context, envID string, sp *spec.Spec, types ...secret.EventType) (*secret.Watch, error)
}

// Options configures a Service.
type Options struct {
	// CheckBeforeTTL is the default renewal lead time for TTL Specs.
	CheckBeforeTTL time.Duration

	// Retry retries a failing tick before giving up until the next one.
	// Nil means a single attempt.
	Retry *resilience.RetryConfig

	// Logger receives tick failures. Default: no-op.
	Logger observe.Logger

	// Metrics counts ticks. Default: no-op.
	Metrics observe.Metrics

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Failure describes a subscription whose last tick failed.
type Failure struct {
	Key       cache.Key
	Provider  string
	Count     int
	LastError string
	Since     time.Time
}

// Service schedules renewals and writes their results into a cache.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - At most one subscription exists per cache key; Schedule replaces it.
// - Ticks of one subscription never overlap.
type Service struct {
	resolver Resolver
	cache    cache.Cache
	opts     Options
	retry    *resilience.Retry
	log      observe.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	subs    map[cache.Key]*subscription
	stopped bool
}

// New creates a renewal service. Call Start to run POLL schedules.
func New(r Resolver, c cache.Cache, opts Options) *Service {
	if opts.CheckBeforeTTL <= 0 {
		opts.CheckBeforeTTL = DefaultCheckBeforeTTL
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics, _ = observe.NewMetrics(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	retry := resilience.RetryConfig{MaxAttempts: 1}
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	logger := cronLogger{log: opts.Logger.With(observe.F("component", "renewal"))}
	return &Service{
		resolver: r,
		cache:    c,
		opts:     opts,
		retry:    resilience.NewRetry(retry),
		log:      opts.Logger,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		subs: make(map[cache.Key]*subscription),
	}
}

// Start runs the POLL scheduler.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop cancels every subscription and waits for running ticks to finish
// or ctx to end.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	subs := make([]*subscription, 0, len(s.subs))
	for k, sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, k)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule starts renewing sp in envID. current is the entry written at
// deploy time; its expiry arms the first TTL check. An existing
// subscription for the same key is cancelled first.
func (s *Service) Schedule(ctx context.Context, envID string, sp *spec.Spec, current cache.Entry) error {
	if sp == nil {
		return spec.ErrNilSpec
	}
	if !sp.Resolution.NeedsRenewal() {
		return ErrNotRenewable
	}

	key := cache.Key{EnvID: envID, NaturalID: sp.NaturalID()}
	provider := ""
	if u, err := secret.ParseURL(sp.URI); err == nil {
		provider = u.Provider
	}
	sub := newSubscription(s, key, sp, provider)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	old := s.subs[key]
	s.subs[key] = sub
	s.mu.Unlock()
	if old != nil {
		old.cancel()
	}

	switch sp.Resolution.Type {
	case spec.ResolutionTTL:
		sub.mu.Lock()
		sub.armLocked(current.ExpireAt)
		sub.mu.Unlock()
	case spec.ResolutionPoll:
		sub.startPoll()
	}

	if sp.Resolution.Watch {
		if err := sub.watch(); err != nil {
			sub.log.Warn(ctx, "secret watch not started", observe.Err(err))
		}
	}
	return nil
}

// Cancel stops the subscription of (envID, naturalID). When it returns, the
// subscription no longer writes to the cache.
func (s *Service) Cancel(envID, naturalID string) bool {
	key := cache.Key{EnvID: envID, NaturalID: naturalID}
	s.mu.Lock()
	sub, ok := s.subs[key]
	delete(s.subs, key)
	s.mu.Unlock()
	if ok {
		sub.cancel()
	}
	return ok
}

// Renew runs one tick of the subscription of (envID, naturalID) now.
func (s *Service) Renew(ctx context.Context, envID, naturalID string) error {
	s.mu.Lock()
	sub, ok := s.subs[cache.Key{EnvID: envID, NaturalID: naturalID}]
	s.mu.Unlock()
	if !ok {
		return ErrNotScheduled
	}
	return sub.run(ctx)
}

// Has reports whether (envID, naturalID) is being renewed.
func (s *Service) Has(envID, naturalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[cache.Key{EnvID: envID, NaturalID: naturalID}]
	return ok
}

// Len returns the number of subscriptions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Failing returns the subscriptions whose last tick failed, sorted by key.
func (s *Service) Failing() []Failure {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var out []Failure
	for _, sub := range subs {
		if f, ok := sub.failure(); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.EnvID != out[j].Key.EnvID {
			return out[i].Key.EnvID < out[j].Key.EnvID
		}
		return out[i].Key.NaturalID < out[j].Key.NaturalID
	})
	return out
}

// ttlDelay returns how long to wait before renewing a value expiring at
// expireAt. A zero expireAt counts from now.
func (s *Service) ttlDelay(sp *spec.Spec, expireAt time.Time) time.Duration {
	now := s.opts.Now()
	if expireAt.IsZero() {
		expireAt = now.Add(sp.Resolution.Duration)
	}
	lead := sp.Resolution.CheckBeforeTTL
	if lead <= 0 {
		lead = s.opts.CheckBeforeTTL
	}
	if lead >= sp.Resolution.Duration {
		lead = sp.Resolution.Duration / 2
	}
	return max(expireAt.Add(-lead).Sub(now), 0)
}

func errorOf(e cache.Entry) error {
	if e.IsError() {
		return errors.New(e.Error)
	}
	return nil
}
