package lifecycle

import (
	"context"
	"errors"

	"github.com/jonwraymond/secretops/config"
	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/secret"
)

// ConfigureProviders instantiates every enabled declaration through the
// factory table and registers it globally, or once per listed environment.
// A registration replacing an earlier one closes the replaced instance.
// Failing declarations are skipped and reported together.
func (s *Service) ConfigureProviders(decls []config.Provider) error {
	ctx := context.Background()
	var errs []error
	for _, d := range decls {
		log := s.log.With(observe.F("secret.provider", d.ID), observe.F("plugin", d.Plugin))
		if !d.IsEnabled() {
			log.Info(ctx, "secret provider disabled")
			continue
		}

		envs := d.Environments
		if len(envs) == 0 {
			envs = []string{""}
		}
		for _, env := range envs {
			p, err := s.factories.Create(d.Plugin, d.Configuration)
			if err != nil {
				cerr := &secret.ConfigError{ProviderID: d.ID, Plugin: d.Plugin, Err: err}
				log.Error(ctx, "secret provider not registered", observe.F("secret.env_id", env), observe.Err(cerr))
				errs = append(errs, cerr)
				continue
			}
			if old := s.providers.Register(env, d.ID, p); old != nil {
				if err := old.Close(); err != nil {
					log.Warn(ctx, "replaced secret provider did not close cleanly", observe.Err(err))
				}
			}
			s.resolver.SetPolicy(env, d.ID, d.Policy())
			log.Info(ctx, "secret provider registered", observe.F("secret.env_id", env))
		}
	}
	return errors.Join(errs...)
}

// RegisterProvider registers an already built provider instance.
func (s *Service) RegisterProvider(envID, id string, p secret.Provider) {
	if old := s.providers.Register(envID, id, p); old != nil && old != p {
		_ = old.Close()
	}
}
