package cache

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// MemoryCache is an in-memory Cache with one segment per environment.
// Each segment has its own lock; segments are dropped once empty.
type MemoryCache struct {
	mu       sync.RWMutex
	segments map[string]*segment
	sfGroup  singleflight.Group
}

type segment struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{segments: make(map[string]*segment)}
}

func (c *MemoryCache) segment(envID string) *segment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.segments[envID]
}

// Get returns the entry stored for (envID, naturalID).
func (c *MemoryCache) Get(_ context.Context, envID, naturalID string) (Entry, bool) {
	seg := c.segment(envID)
	if seg == nil {
		return Entry{}, false
	}
	seg.mu.RLock()
	e, ok := seg.entries[naturalID]
	seg.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Put stores e, replacing any previous entry.
func (c *MemoryCache) Put(_ context.Context, envID, naturalID string, e Entry) error {
	if err := ValidateKey(naturalID); err != nil {
		return err
	}
	c.store(envID, naturalID, e.Clone(), true)
	return nil
}

// store writes e under the segment lock. When overwrite is false an existing
// entry wins and is returned. Locks are taken cache first, segment second.
func (c *MemoryCache) store(envID, naturalID string, e Entry, overwrite bool) Entry {
	c.mu.RLock()
	if seg := c.segments[envID]; seg != nil {
		defer c.mu.RUnlock()
		return seg.write(naturalID, e, overwrite)
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	seg := c.segments[envID]
	if seg == nil {
		seg = &segment{entries: make(map[string]Entry)}
		c.segments[envID] = seg
	}
	return seg.write(naturalID, e, overwrite)
}

func (s *segment) write(naturalID string, e Entry, overwrite bool) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[naturalID]; ok && !overwrite {
		return cur
	}
	s.entries[naturalID] = e
	return e
}

// ComputeIfAbsent returns the stored entry, or stores and returns fn's
// result. Concurrent callers for the same key share one fn call.
func (c *MemoryCache) ComputeIfAbsent(ctx context.Context, envID, naturalID string, fn func(context.Context) Entry) (Entry, error) {
	if fn == nil {
		return Entry{}, ErrNilCompute
	}
	if err := ValidateKey(naturalID); err != nil {
		return Entry{}, err
	}
	if e, ok := c.Get(ctx, envID, naturalID); ok {
		return e, nil
	}

	v, _, _ := c.sfGroup.Do(envID+"\x00"+naturalID, func() (any, error) {
		if e, ok := c.Get(ctx, envID, naturalID); ok {
			return e, nil
		}
		return c.store(envID, naturalID, fn(ctx).Clone(), false), nil
	})
	return v.(Entry).Clone(), nil
}

// Evict removes the entry. Idempotent - no error on miss.
func (c *MemoryCache) Evict(_ context.Context, envID, naturalID string) error {
	seg := c.segment(envID)
	if seg == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	seg.mu.Lock()
	defer seg.mu.Unlock()

	delete(seg.entries, naturalID)
	if len(seg.entries) == 0 && c.segments[envID] == seg {
		delete(c.segments, envID)
	}
	return nil
}

// Len returns the number of entries across all environments.
func (c *MemoryCache) Len() int {
	n := 0
	c.Range(func(Key, Entry) bool {
		n++
		return true
	})
	return n
}

// Envs returns the environments holding entries, sorted.
func (c *MemoryCache) Envs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	envs := make([]string, 0, len(c.segments))
	for env := range c.segments {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// Range calls fn for every entry until fn returns false. Entries written
// during the walk may or may not be visited.
func (c *MemoryCache) Range(fn func(Key, Entry) bool) {
	c.mu.RLock()
	segs := make(map[string]*segment, len(c.segments))
	for env, seg := range c.segments {
		segs[env] = seg
	}
	c.mu.RUnlock()

	for env, seg := range segs {
		seg.mu.RLock()
		snapshot := make(map[string]Entry, len(seg.entries))
		for id, e := range seg.entries {
			snapshot[id] = e
		}
		seg.mu.RUnlock()

		for id, e := range snapshot {
			if !fn(Key{EnvID: env, NaturalID: id}, e.Clone()) {
				return
			}
		}
	}
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
