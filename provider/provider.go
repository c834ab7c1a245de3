// Package provider holds the static registration table of built-in secret
// provider plugins.
package provider

import (
	"errors"

	"github.com/jonwraymond/secretops/provider/env"
	"github.com/jonwraymond/secretops/provider/file"
	"github.com/jonwraymond/secretops/provider/mock"
	"github.com/jonwraymond/secretops/secret"
)

// Builtins maps plugin ids to the factories of the built-in providers.
var Builtins = map[string]secret.ProviderFactory{
	mock.Plugin: mock.Factory,
	env.Plugin:  env.Factory,
	file.Plugin: file.Factory,
}

// Register adds every built-in factory to reg, skipping plugins already
// present.
func Register(reg *secret.Registry) error {
	var errs []error
	for plugin, factory := range Builtins {
		if reg.Has(plugin) {
			continue
		}
		if err := reg.Register(plugin, factory); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry returns a factory registry holding the built-in providers.
func NewRegistry() *secret.Registry {
	reg := secret.NewRegistry()
	_ = Register(reg)
	return reg
}
