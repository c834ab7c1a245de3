package discovery

import (
	"sort"
	"sync"

	"github.com/jonwraymond/secretops/spec"
)

type definitionKey struct {
	envID string
	def   Definition
}

// Registry holds discovery contexts indexed by id and by owning definition.
//
// Contract:
// - Concurrency: safe for concurrent use; one mutex guards both indexes.
// - Contexts are immutable once registered.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Context
	byDef map[definitionKey]map[string]*Context
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Context),
		byDef: make(map[definitionKey]map[string]*Context),
	}
}

// Register records that the definition of c.Location contains c.Ref.
func (r *Registry) Register(c *Context) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[c.ID]; ok {
		r.removeLocked(old)
	}
	r.byID[c.ID] = c
	key := definitionKey{envID: c.EnvID, def: c.Location.Definition}
	set := r.byDef[key]
	if set == nil {
		set = make(map[string]*Context)
		r.byDef[key] = set
	}
	set[c.ID] = c
}

// Unregister removes the context with id and returns it.
func (r *Registry) Unregister(id string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	r.removeLocked(c)
	return c
}

func (r *Registry) removeLocked(c *Context) {
	delete(r.byID, c.ID)
	key := definitionKey{envID: c.EnvID, def: c.Location.Definition}
	if set := r.byDef[key]; set != nil {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(r.byDef, key)
		}
	}
}

// Get returns the context with id, or nil.
func (r *Registry) Get(id string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// GetByDefinition returns the contexts owned by def in envID.
func (r *Registry) GetByDefinition(envID string, def Definition) []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.byDef[definitionKey{envID: envID, def: def}])
}

// RemoveByDefinition removes and returns the contexts owned by def in envID.
func (r *Registry) RemoveByDefinition(envID string, def Definition) []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := definitionKey{envID: envID, def: def}
	out := sorted(r.byDef[key])
	for _, c := range out {
		delete(r.byID, c.ID)
	}
	delete(r.byDef, key)
	return out
}

// FindBySpec returns every context whose reference resolves to s. A
// provider-wide Spec (empty EnvID) is matched in every environment.
func (r *Registry) FindBySpec(s *spec.Spec) []*Context {
	if s == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Context
	for _, c := range r.byID {
		if s.EnvID != "" && c.EnvID != s.EnvID {
			continue
		}
		if s.Matches(c.Ref) {
			out = append(out, c)
		}
	}
	sortByID(out)
	return out
}

// All returns every registered context, ordered by id.
func (r *Registry) All() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.byID)
}

// Len returns the number of registered contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func sorted(set map[string]*Context) []*Context {
	out := make([]*Context, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sortByID(out)
	return out
}

func sortByID(cs []*Context) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
