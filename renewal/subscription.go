package renewal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// subscription renews one cache key. running serializes ticks; mu guards
// the cancelled flag and every cache write, so a write never lands after
// cancel has taken mu.
type subscription struct {
	svc  *Service
	key  cache.Key
	spec *spec.Spec
	meta observe.SecretMeta
	log  observe.Logger

	ctx  context.Context
	stop context.CancelFunc

	running sync.Mutex

	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
	cronID    cron.EntryID
	stream    *secret.Watch
	consumed  chan struct{}
	failures  int
	lastErr   error
	since     time.Time
}

func newSubscription(s *Service, key cache.Key, sp *spec.Spec, provider string) *subscription {
	ctx, stop := context.WithCancel(context.Background())
	meta := observe.SecretMeta{
		EnvID:     key.EnvID,
		NaturalID: key.NaturalID,
		Provider:  provider,
		SpecID:    sp.ID,
		Operation: "renew",
	}
	return &subscription{
		svc:  s,
		key:  key,
		spec: sp,
		meta: meta,
		log:  s.log.WithSecret(meta),
		ctx:  ctx,
		stop: stop,
	}
}

// tick is the timer and cron entry point. A tick that finds another one
// running is skipped.
func (sub *subscription) tick() {
	if !sub.running.TryLock() {
		sub.log.Debug(sub.ctx, "renewal tick skipped, previous tick still running")
		return
	}
	defer sub.running.Unlock()
	_ = sub.runLocked(sub.ctx)
}

func (sub *subscription) run(ctx context.Context) error {
	sub.running.Lock()
	defer sub.running.Unlock()
	return sub.runLocked(ctx)
}

func (sub *subscription) runLocked(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(sub.ctx, cancel)()

	s := sub.svc
	var entry cache.Entry
	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		e, err := s.resolver.ResolveSpec(ctx, sub.key.EnvID, sub.spec)
		if err != nil {
			if errors.Is(err, secret.ErrProviderNotFound) {
				return resilience.Permanent(err)
			}
			return err
		}
		if err := errorOf(e); err != nil {
			return err
		}
		entry = e
		return nil
	})

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return ErrNotScheduled
	}
	s.opts.Metrics.RecordRenewal(ctx, sub.meta, err)

	if err == nil {
		err = s.cache.Put(ctx, sub.key.EnvID, sub.key.NaturalID, entry)
	}
	if err != nil {
		sub.failures++
		sub.lastErr = err
		if sub.since.IsZero() {
			sub.since = s.opts.Now()
		}
		sub.log.Warn(ctx, "secret renewal failed, keeping last known good value",
			observe.Err(err), observe.F("failures", sub.failures))
		sub.armLocked(time.Time{})
		return err
	}

	if sub.failures > 0 {
		sub.log.Info(ctx, "secret renewal recovered", observe.F("failures", sub.failures))
	}
	sub.failures, sub.lastErr, sub.since = 0, nil, time.Time{}
	sub.armLocked(entry.ExpireAt)
	return nil
}

// armLocked re-arms the TTL timer. It is a no-op for other resolution types
// and once cancelled. Callers hold mu.
func (sub *subscription) armLocked(expireAt time.Time) {
	if sub.cancelled || sub.spec.Resolution.Type != spec.ResolutionTTL {
		return
	}
	if sub.timer != nil {
		sub.timer.Stop()
	}
	sub.timer = time.AfterFunc(sub.svc.ttlDelay(sub.spec, expireAt), sub.tick)
}

func (sub *subscription) startPoll() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}
	sub.cronID = sub.svc.cron.Schedule(every{d: sub.spec.Resolution.Duration}, cron.FuncJob(sub.tick))
}

// watch subscribes to provider events for the lifetime of the subscription.
func (sub *subscription) watch() error {
	w, err := sub.svc.resolver.WatchSpec(sub.ctx, sub.key.EnvID, sub.spec)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	if sub.cancelled {
		sub.mu.Unlock()
		w.Stop()
		return nil
	}
	done := make(chan struct{})
	sub.stream, sub.consumed = w, done
	sub.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range w.Events() {
			sub.apply(ev)
		}
	}()
	return nil
}

func (sub *subscription) apply(ev secret.Event) {
	var e cache.Entry
	switch ev.Type {
	case secret.EventCreated, secret.EventUpdated:
		m := ev.Map
		if res := sub.spec.Resolution; res.Type == spec.ResolutionTTL {
			m = m.WithExpireAt(sub.svc.opts.Now().Add(res.Duration))
		}
		e = cache.ValueEntry(m)
		if m.IsEmpty() {
			e = cache.EmptyEntry()
		}
	case secret.EventDeleted:
		e = cache.NotFoundEntry()
	default:
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}
	if err := sub.svc.cache.Put(sub.ctx, sub.key.EnvID, sub.key.NaturalID, e); err != nil {
		sub.log.Warn(sub.ctx, "secret watch event not applied", observe.Err(err))
		return
	}
	sub.log.Debug(sub.ctx, "secret watch event applied", observe.F("event", ev.Type.String()))
	if e.IsValue() {
		sub.armLocked(e.ExpireAt)
	}
}

// cancel stops every source of writes and waits for the watch consumer.
func (sub *subscription) cancel() {
	sub.mu.Lock()
	if sub.cancelled {
		sub.mu.Unlock()
		return
	}
	sub.cancelled = true
	sub.stop()
	if sub.timer != nil {
		sub.timer.Stop()
	}
	id, w, done := sub.cronID, sub.stream, sub.consumed
	sub.mu.Unlock()

	if id != 0 {
		sub.svc.cron.Remove(id)
	}
	if w != nil {
		w.Stop()
		<-done
	}
}

func (sub *subscription) failure() (Failure, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.failures == 0 {
		return Failure{}, false
	}
	return Failure{
		Key:       sub.key,
		Provider:  sub.meta.Provider,
		Count:     sub.failures,
		LastError: sub.lastErr.Error(),
		Since:     sub.since,
	}, true
}
