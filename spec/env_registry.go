package spec

import (
	"sort"
	"sync"
)

// EnvAwareRegistry keeps one Registry per environment. Specs with an empty
// EnvID live in the provider-wide registry and are visible from every
// environment after the environment's own Specs.
//
// Environment registries are created on first Register and reclaimed when
// their last Spec is unregistered. All mutations go through one mutex so a
// reclaimed registry can never swallow a concurrent Register.
type EnvAwareRegistry struct {
	mu   sync.RWMutex
	envs map[string]*Registry
}

// NewEnvAwareRegistry creates an empty registry set.
func NewEnvAwareRegistry() *EnvAwareRegistry {
	return &EnvAwareRegistry{envs: make(map[string]*Registry)}
}

// Register adds s to the registry of s.EnvID.
func (e *EnvAwareRegistry) Register(s *Spec) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.envs[s.EnvID]
	if !ok {
		reg = NewRegistry()
		e.envs[s.EnvID] = reg
	}
	reg.Register(s)
}

// Unregister removes s from the registry of s.EnvID.
func (e *EnvAwareRegistry) Unregister(s *Spec) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.envs[s.EnvID]
	if !ok {
		return
	}
	reg.Unregister(s)
	if reg.IsEmpty() {
		delete(e.envs, s.EnvID)
	}
}

// Registry returns the registry of envID, or nil if it holds no Spec.
func (e *EnvAwareRegistry) Registry(envID string) *Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.envs[envID]
}

// Envs returns the environments that currently hold Specs, sorted.
func (e *EnvAwareRegistry) Envs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	envs := make([]string, 0, len(e.envs))
	for env := range e.envs {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// lookup runs fn against the registry of envID, then the provider-wide one.
func (e *EnvAwareRegistry) lookup(envID string, fn func(*Registry) *Spec) *Spec {
	e.mu.RLock()
	own := e.envs[envID]
	global := e.envs[""]
	e.mu.RUnlock()

	if own != nil {
		if s := fn(own); s != nil {
			return s
		}
	}
	if global != nil && envID != "" {
		return fn(global)
	}
	return nil
}

// FromID looks up id in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromID(envID, id string) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromID(id) })
}

// FromName looks up name in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromName(envID, name string) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromName(name) })
}

// FromURI looks up uri in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromURI(envID, uri string) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromURI(uri) })
}

// FromURIAndKey looks up uri:key in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromURIAndKey(envID, uri, key string) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromURIAndKey(uri, key) })
}

// FromRef resolves ref in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromRef(envID string, ref Ref) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromRef(ref) })
}

// FromSpec resolves a query Spec in envID, falling back to provider-wide Specs.
func (e *EnvAwareRegistry) FromSpec(envID string, query *Spec) *Spec {
	return e.lookup(envID, func(r *Registry) *Spec { return r.FromSpec(query) })
}
