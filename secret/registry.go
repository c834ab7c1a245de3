package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates a Provider from a provider-specific configuration
// map. The map has already been through ExpandConfig.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry maps plugin ids to provider factories. It is the static
// registration table consulted when provider declarations are deployed.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds a factory under plugin.
func (r *Registry) Register(plugin string, factory ProviderFactory) error {
	plugin = strings.TrimSpace(plugin)
	if plugin == "" || factory == nil {
		return errors.New("secret: invalid plugin registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[plugin]; exists {
		return fmt.Errorf("secret: plugin %q already registered", plugin)
	}
	r.factories[plugin] = factory
	return nil
}

// Create instantiates a provider from the factory of plugin.
func (r *Registry) Create(plugin string, cfg map[string]any) (Provider, error) {
	plugin = strings.TrimSpace(plugin)
	if plugin == "" {
		return nil, fmt.Errorf("%w: plugin is required", ErrInvalidConfig)
	}

	r.mu.RLock()
	factory, ok := r.factories[plugin]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotRegistered, plugin)
	}

	expanded, err := ExpandConfig(cfg)
	if err != nil {
		return nil, err
	}
	return factory(expanded)
}

// Has reports whether plugin is registered.
func (r *Registry) Has(plugin string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.TrimSpace(plugin)]
	return ok
}

// List returns registered plugin ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the process-wide factory table. Built-in providers are
// added to it by provider.Register.
var DefaultRegistry = NewRegistry()
