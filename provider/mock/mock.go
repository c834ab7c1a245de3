// Package mock provides an in-memory secret provider preloaded from
// configuration. It supports failure injection and pushes change events to
// watchers, which makes it the test double for the rest of the module.
package mock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/jonwraymond/secretops/secret"
)

// Plugin is the plugin id of the mock provider.
const Plugin = "mock"

// ErrInjected is returned by resolutions of a path marked with Fail.
var ErrInjected = errors.New("mock: injected failure")

// Config is the mock provider configuration.
//
//	configuration:
//	  secrets:
//	    mySecret:
//	      redisPassword: redisadmin
//	  errors:
//	    broken: "backend unavailable"
type Config struct {
	Secrets map[string]map[string]string `yaml:"secrets"`
	Errors  map[string]string            `yaml:"errors"`
}

// Provider is an in-memory secret store.
type Provider struct {
	mu       sync.RWMutex
	secrets  map[string]map[string]string
	failures map[string]error
	watchers map[*watcher]struct{}
	calls    map[string]int
	closed   bool
}

type watcher struct {
	location string
	types    []secret.EventType
	ch       chan secret.Event
}

// New creates a provider holding a copy of secrets.
func New(secrets map[string]map[string]string) *Provider {
	p := &Provider{
		secrets:  make(map[string]map[string]string, len(secrets)),
		failures: make(map[string]error),
		watchers: make(map[*watcher]struct{}),
		calls:    make(map[string]int),
	}
	for path, bundle := range secrets {
		p.secrets[path] = maps.Clone(bundle)
	}
	return p
}

// Factory decodes a Config and builds a Provider.
func Factory(cfg map[string]any) (secret.Provider, error) {
	var c Config
	if err := secret.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	p := New(c.Secrets)
	for path, msg := range c.Errors {
		p.failures[path] = fmt.Errorf("%w: %s", ErrInjected, msg)
	}
	return p, nil
}

// FromURL maps /mock/<path> onto the location <path>.
func (p *Provider) FromURL(u secret.URL) (secret.Mount, error) {
	if u.Provider == "" || u.Path == "" {
		return secret.Mount{}, fmt.Errorf("%w: %q", secret.ErrInvalidURL, u.Raw)
	}
	return secret.DefaultMount(u), nil
}

// Resolve returns the bundle stored at m.Location. A missing location
// completes as not found.
func (p *Provider) Resolve(_ context.Context, m secret.Mount) *secret.Future {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[m.Location]++
	if p.closed {
		return secret.Completed(secret.Map{}, false, errors.New("mock: provider closed"))
	}
	if err, ok := p.failures[m.Location]; ok {
		return secret.Completed(secret.Map{}, false, err)
	}
	bundle, ok := p.secrets[m.Location]
	if !ok {
		return secret.Completed(secret.Map{}, false, nil)
	}
	return secret.Completed(secret.MapOf(bundle), true, nil)
}

// Watch streams changes made through Put and Delete at m.Location.
func (p *Provider) Watch(ctx context.Context, m secret.Mount, types ...secret.EventType) (*secret.Watch, error) {
	w := &watcher{location: m.Location, types: types, ch: make(chan secret.Event, 16)}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("mock: provider closed")
	}
	p.watchers[w] = struct{}{}
	p.mu.Unlock()

	return secret.StartWatch(ctx, func(ctx context.Context, emit func(secret.Event) bool) {
		defer func() {
			p.mu.Lock()
			delete(p.watchers, w)
			p.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.ch:
				if !emit(e) {
					return
				}
			}
		}
	}), nil
}

// Put stores a bundle at path and notifies watchers.
func (p *Provider) Put(path string, bundle map[string]string) {
	p.mu.Lock()
	_, existed := p.secrets[path]
	p.secrets[path] = maps.Clone(bundle)
	typ := secret.EventCreated
	if existed {
		typ = secret.EventUpdated
	}
	p.notifyLocked(path, secret.Event{Type: typ, Map: secret.MapOf(bundle)})
	p.mu.Unlock()
}

// Delete removes the bundle at path and notifies watchers.
func (p *Provider) Delete(path string) {
	p.mu.Lock()
	delete(p.secrets, path)
	p.notifyLocked(path, secret.Event{Type: secret.EventDeleted})
	p.mu.Unlock()
}

// Fail makes every resolution of path fail with err until Recover is called.
func (p *Provider) Fail(path string, err error) {
	if err == nil {
		err = ErrInjected
	}
	p.mu.Lock()
	p.failures[path] = err
	p.mu.Unlock()
}

// Recover clears an injected failure.
func (p *Provider) Recover(path string) {
	p.mu.Lock()
	delete(p.failures, path)
	p.mu.Unlock()
}

// Calls returns how many times path was resolved.
func (p *Provider) Calls(path string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[path]
}

// Watchers returns the number of active watches.
func (p *Provider) Watchers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.watchers)
}

// Close fails later resolutions. Active watches end when their own context
// is cancelled.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// notifyLocked drops events for watchers whose buffer is full.
func (p *Provider) notifyLocked(path string, e secret.Event) {
	for w := range p.watchers {
		if w.location != path || !secret.Accepts(w.types, e.Type) {
			continue
		}
		select {
		case w.ch <- e:
		default:
		}
	}
}
