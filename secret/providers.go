package secret

import (
	"errors"
	"sort"
	"sync"
)

// Registration identifies one deployed provider instance. An empty EnvID
// means the provider serves every environment.
type Registration struct {
	EnvID string
	ID    string
}

func (r Registration) String() string {
	if r.EnvID == "" {
		return r.ID
	}
	return r.EnvID + "/" + r.ID
}

// ProviderRegistry holds deployed provider instances in two tiers:
// per environment, and global.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Get checks the environment tier first, then the global tier.
// - Register is last-writer-wins; the replaced instance is returned and
//   closing it is the caller's decision.
type ProviderRegistry struct {
	mu     sync.RWMutex
	global map[string]Provider
	byEnv  map[string]map[string]Provider
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		global: make(map[string]Provider),
		byEnv:  make(map[string]map[string]Provider),
	}
}

// Register stores p under (envID, id) and returns the provider it replaced.
func (r *ProviderRegistry) Register(envID, id string, p Provider) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	tier := r.global
	if envID != "" {
		tier = r.byEnv[envID]
		if tier == nil {
			tier = make(map[string]Provider)
			r.byEnv[envID] = tier
		}
	}
	old := tier[id]
	tier[id] = p
	return old
}

// Unregister removes the provider under (envID, id) and returns it.
func (r *ProviderRegistry) Unregister(envID, id string) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if envID == "" {
		old := r.global[id]
		delete(r.global, id)
		return old
	}
	tier := r.byEnv[envID]
	old := tier[id]
	delete(tier, id)
	if len(tier) == 0 {
		delete(r.byEnv, envID)
	}
	return old
}

// Get returns the provider for (envID, id), falling back to the global tier.
func (r *ProviderRegistry) Get(envID, id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byEnv[envID][id]; ok && envID != "" {
		return p, nil
	}
	if p, ok := r.global[id]; ok {
		return p, nil
	}
	return nil, &ProviderNotFoundError{ProviderID: id, EnvID: envID}
}

// List returns every registration, sorted by environment then id.
func (r *ProviderRegistry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.global))
	for id := range r.global {
		out = append(out, Registration{ID: id})
	}
	for env, tier := range r.byEnv {
		for id := range tier {
			out = append(out, Registration{EnvID: env, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnvID != out[j].EnvID {
			return out[i].EnvID < out[j].EnvID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close unregisters and closes every provider.
func (r *ProviderRegistry) Close() error {
	r.mu.Lock()
	all := make([]Provider, 0, len(r.global))
	for _, p := range r.global {
		all = append(all, p)
	}
	for _, tier := range r.byEnv {
		for _, p := range tier {
			all = append(all, p)
		}
	}
	r.global = make(map[string]Provider)
	r.byEnv = make(map[string]map[string]Provider)
	r.mu.Unlock()

	var errs []error
	for _, p := range all {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
