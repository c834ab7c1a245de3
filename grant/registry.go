package grant

import (
	"sort"
	"sync"

	"github.com/jonwraymond/secretops/discovery"
)

// Registry is the set of granted discovery contexts, keyed by context id.
// Add and Remove are idempotent.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*discovery.Context
}

// NewRegistry creates an empty grant registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*discovery.Context)}
}

// Add grants dc. It reports whether dc was not granted before.
func (r *Registry) Add(dc *discovery.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.contexts[dc.ID]
	r.contexts[dc.ID] = dc
	return !exists
}

// Remove revokes the context with the given id. It reports whether it was granted.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.contexts[id]
	delete(r.contexts, id)
	return exists
}

// Contains reports whether the context id is granted.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contexts[id]
	return ok
}

// Get returns the granted context with the given id.
func (r *Registry) Get(id string) (*discovery.Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dc, ok := r.contexts[id]
	return dc, ok
}

// IDs returns the granted context ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of granted contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}
