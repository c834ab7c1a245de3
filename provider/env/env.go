// Package env resolves secrets from process environment variables.
//
//	/env/REDIS_PASSWORD          bundle {"REDIS_PASSWORD": <value>}
//	/env/DB_?prefix=true         bundle of every DB_* variable, keyed without the prefix
package env

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jonwraymond/secretops/secret"
)

// Plugin is the plugin id of the environment provider.
const Plugin = "env"

// Config is the environment provider configuration.
type Config struct {
	// Prefix is prepended to every variable name looked up.
	Prefix string `yaml:"prefix"`
}

// Provider reads environment variables. It cannot watch.
type Provider struct {
	prefix  string
	lookup  func(string) (string, bool)
	environ func() []string
}

// New creates a provider reading the process environment.
func New(cfg Config) *Provider {
	return &Provider{prefix: cfg.Prefix, lookup: os.LookupEnv, environ: os.Environ}
}

// Factory decodes a Config and builds a Provider.
func Factory(cfg map[string]any) (secret.Provider, error) {
	var c Config
	if err := secret.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return New(c), nil
}

// FromURL maps /env/<NAME> onto the variable <prefix><NAME>.
func (p *Provider) FromURL(u secret.URL) (secret.Mount, error) {
	if strings.Contains(u.Path, "/") {
		return secret.Mount{}, fmt.Errorf("%w: %q is not a variable name", secret.ErrInvalidURL, u.Path)
	}
	m := secret.DefaultMount(u)
	m.Location = p.prefix + u.Path
	return m, nil
}

// Resolve reads the variable, or every variable sharing the prefix when the
// mount sets prefix=true.
func (p *Provider) Resolve(_ context.Context, m secret.Mount) *secret.Future {
	if m.Option("prefix", "false") == "true" {
		values := make(map[string]string)
		for _, kv := range p.environ() {
			name, value, ok := strings.Cut(kv, "=")
			if ok && strings.HasPrefix(name, m.Location) && name != m.Location {
				values[strings.TrimPrefix(name, m.Location)] = value
			}
		}
		return secret.Completed(secret.MapOf(values), len(values) > 0, nil)
	}

	value, ok := p.lookup(m.Location)
	if !ok {
		return secret.Completed(secret.Map{}, false, nil)
	}
	return secret.Completed(secret.MapOf(map[string]string{m.Location: value}), true, nil)
}

// Watch is not supported.
func (p *Provider) Watch(context.Context, secret.Mount, ...secret.EventType) (*secret.Watch, error) {
	return nil, secret.ErrWatchUnsupported
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }
