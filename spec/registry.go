package spec

import (
	"sync"
)

// Registry indexes the Specs of one environment by id, name, uri and uri:key.
//
// Contract:
// - Concurrency: safe for concurrent use; one mutex guards all indexes.
// - Ownership: stored Specs must not be mutated after Register.
type Registry struct {
	mu          sync.RWMutex
	byID        map[string]*Spec
	byName      map[string]*Spec
	byURI       map[string]*Spec
	byURIAndKey map[string]*Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:        make(map[string]*Spec),
		byName:      make(map[string]*Spec),
		byURI:       make(map[string]*Spec),
		byURIAndKey: make(map[string]*Spec),
	}
}

// Register inserts s into every index whose field is set. Child names are
// indexed by name and resolve to s.
func (r *Registry) Register(s *Spec) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID != "" {
		r.byID[s.ID] = s
	}
	if s.Name != "" {
		r.byName[s.Name] = s
	}
	for _, c := range s.Children {
		if c.Name != "" {
			r.byName[c.Name] = s
		}
	}
	if s.URI != "" {
		r.byURI[s.URI] = s
		if s.Key != "" {
			r.byURIAndKey[s.URIAndKey()] = s
		}
	}
}

// Unregister removes s from the indexes it was inserted into. Index slots
// that were since taken over by another Spec are left untouched.
func (r *Registry) Unregister(s *Spec) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removeIfSame(r.byID, s.ID, s)
	removeIfSame(r.byName, s.Name, s)
	for _, c := range s.Children {
		removeIfSame(r.byName, c.Name, s)
	}
	removeIfSame(r.byURI, s.URI, s)
	if s.Key != "" {
		removeIfSame(r.byURIAndKey, s.URIAndKey(), s)
	}
}

func removeIfSame(index map[string]*Spec, key string, s *Spec) {
	if key == "" {
		return
	}
	if cur, ok := index[key]; ok && (cur == s || cur.ID == s.ID) {
		delete(index, key)
	}
}

// FromID returns the Spec registered under id, or nil.
func (r *Registry) FromID(id string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// FromName returns the Spec registered under name, or nil.
func (r *Registry) FromName(name string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// FromURI returns the Spec registered under uri, or nil.
func (r *Registry) FromURI(uri string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byURI[uri]
}

// FromURIAndKey returns the Spec registered under uri:key. When no Spec is
// bound to that exact key, a Spec covering the whole uri (no key, or a
// dynamic key) is returned instead.
func (r *Registry) FromURIAndKey(uri, key string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byURIAndKey[uri+":"+key]; ok {
		return s
	}
	if s, ok := r.byURI[uri]; ok && s.coversAnyKey() {
		return s
	}
	return nil
}

// FromRef dispatches on the reference shape. Expression main parts cannot be
// looked up and yield nil.
func (r *Registry) FromRef(ref Ref) *Spec {
	if ref.Main.EL {
		return nil
	}
	if ref.MainType == RefTypeName {
		return r.FromName(ref.Main.Value)
	}
	switch ref.SecondaryType {
	case RefTypeName:
		if ref.Secondary.EL {
			return nil
		}
		return r.FromName(ref.Secondary.Value)
	case RefTypeKey:
		if ref.Secondary.EL {
			return r.FromURI(ref.Main.Value)
		}
		return r.FromURIAndKey(ref.Main.Value, ref.Secondary.Value)
	default:
		return r.FromURI(ref.Main.Value)
	}
}

// FromSpec looks up a partially filled query Spec, by priority:
// id, then name, then uri[:key].
func (r *Registry) FromSpec(query *Spec) *Spec {
	switch {
	case query == nil:
		return nil
	case query.ID != "":
		return r.FromID(query.ID)
	case query.Name != "":
		return r.FromName(query.Name)
	case query.URI != "" && query.Key != "":
		return r.FromURIAndKey(query.URI, query.Key)
	case query.URI != "":
		return r.FromURI(query.URI)
	default:
		return nil
	}
}

// All returns the registered Specs in no particular order.
func (r *Registry) All() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Spec, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered Specs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// IsEmpty reports whether every index is empty.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID) == 0 && len(r.byName) == 0 && len(r.byURI) == 0 && len(r.byURIAndKey) == 0
}
