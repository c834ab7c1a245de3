package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/secretops/observe"
	"github.com/jonwraymond/secretops/resilience"
	"github.com/jonwraymond/secretops/spec"
)

// DefaultServiceName names the runtime in telemetry when unset.
const DefaultServiceName = "secretops"

// Config is the root configuration document.
type Config struct {
	AllowEmptyACLSpecs bool           `yaml:"allowEmptyACLSpecs"`
	OnTheFlySpecs      OnTheFlySpecs  `yaml:"onTheFlySpecs"`
	Renewal            Renewal        `yaml:"renewal"`
	Grants             Grants         `yaml:"grants"`
	Observability      observe.Config `yaml:"observability"`
	Providers          []Provider     `yaml:"providers"`
	Specs              []Spec         `yaml:"specs"`
}

// OnTheFlySpecs toggles synthesis of Specs from literal references.
type OnTheFlySpecs struct {
	Enabled bool `yaml:"enabled"`
}

// Renewal configures the renewal scheduler.
type Renewal struct {
	CheckBeforeTTL time.Duration `yaml:"checkBeforeTTL"`
	Retry          *Retry        `yaml:"retry"`
}

// Grants configures grant tokens. An empty signing key issues opaque ids.
type Grants struct {
	SigningKey string `yaml:"signingKey"`
}

// Retry is a retry policy.
type Retry struct {
	Attempts     int           `yaml:"attempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
	Jitter       bool          `yaml:"jitter"`
}

// RetryConfig converts r. A nil Retry yields nil.
func (r *Retry) RetryConfig() *resilience.RetryConfig {
	if r == nil {
		return nil
	}
	return &resilience.RetryConfig{
		MaxAttempts:  r.Attempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Jitter:       r.Jitter,
	}
}

// CircuitBreaker is a circuit breaker policy.
type CircuitBreaker struct {
	MaxFailures  int           `yaml:"maxFailures"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

// Provider declares one provider instance. Without environments it is
// global.
type Provider struct {
	ID             string          `yaml:"id"`
	Plugin         string          `yaml:"plugin"`
	Enabled        *bool           `yaml:"enabled"`
	Environments   []string        `yaml:"environments"`
	Configuration  map[string]any  `yaml:"configuration"`
	Timeout        time.Duration   `yaml:"timeout"`
	Retry          *Retry          `yaml:"retry"`
	CircuitBreaker *CircuitBreaker `yaml:"circuitBreaker"`
}

// IsEnabled reports whether the provider is enabled. Providers are enabled
// unless stated otherwise.
func (p Provider) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Policy returns the resilience policy guarding the provider's calls.
func (p Provider) Policy() resilience.Policy {
	pol := resilience.Policy{Timeout: p.Timeout, Retry: p.Retry.RetryConfig()}
	if p.CircuitBreaker != nil {
		pol.CircuitBreaker = &resilience.CircuitBreakerConfig{
			MaxFailures:  p.CircuitBreaker.MaxFailures,
			ResetTimeout: p.CircuitBreaker.ResetTimeout,
		}
	}
	return pol
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = DefaultServiceName
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Renewal.CheckBeforeTTL < 0 {
		errs = append(errs, errors.New("renewal.checkBeforeTTL must not be negative"))
	}
	if r := c.Renewal.Retry; r != nil && r.Attempts < 0 {
		errs = append(errs, errors.New("renewal.retry.attempts must not be negative"))
	}

	type scope struct{ env, id string }
	seen := make(map[scope]bool)
	for i, p := range c.Providers {
		prefix := fmt.Sprintf("providers[%d]", i)
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", prefix))
		}
		if p.Plugin == "" {
			errs = append(errs, fmt.Errorf("%s: plugin is required", prefix))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s: timeout must not be negative", prefix))
		}
		if !p.IsEnabled() || p.ID == "" {
			continue
		}
		envs := p.Environments
		if len(envs) == 0 {
			envs = []string{""}
		}
		for _, env := range envs {
			k := scope{env: env, id: p.ID}
			if seen[k] {
				errs = append(errs, fmt.Errorf("%s: %w %q in environment %q", prefix, ErrDuplicateProvider, p.ID, env))
			}
			seen[k] = true
		}
	}

	for i, s := range c.Specs {
		if _, err := s.ToSpec(); err != nil {
			errs = append(errs, fmt.Errorf("specs[%d]: %w", i, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// DeclaredSpecs converts every declared Spec.
func (c *Config) DeclaredSpecs() ([]*spec.Spec, error) {
	out := make([]*spec.Spec, 0, len(c.Specs))
	for i, s := range c.Specs {
		sp, err := s.ToSpec()
		if err != nil {
			return nil, fmt.Errorf("specs[%d]: %w", i, err)
		}
		out = append(out, sp)
	}
	return out, nil
}
