package secret

import (
	"errors"
	"fmt"
)

// Sentinel errors for providers and their configuration.
var (
	// ErrProviderNotFound indicates no provider matches an environment and id.
	ErrProviderNotFound = errors.New("secret: provider not found")

	// ErrPluginNotRegistered indicates no factory exists for a plugin id.
	ErrPluginNotRegistered = errors.New("secret: plugin not registered")

	// ErrInvalidConfig indicates a malformed provider declaration or configuration.
	ErrInvalidConfig = errors.New("secret: invalid provider configuration")

	// ErrInvalidURL indicates a secret URL that cannot be parsed.
	ErrInvalidURL = errors.New("secret: invalid secret url")

	// ErrWatchUnsupported indicates a provider that cannot push change events.
	ErrWatchUnsupported = errors.New("secret: watch not supported")

	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")
)

// ProviderNotFoundError names the provider and environment of a failed lookup.
type ProviderNotFoundError struct {
	ProviderID string
	EnvID      string
}

func (e *ProviderNotFoundError) Error() string {
	if e.EnvID == "" {
		return fmt.Sprintf("secret: provider %q not found", e.ProviderID)
	}
	return fmt.Sprintf("secret: provider %q not found for environment %q", e.ProviderID, e.EnvID)
}

// Is matches ErrProviderNotFound.
func (e *ProviderNotFoundError) Is(target error) bool {
	return target == ErrProviderNotFound
}

// ConfigError reports a provider declaration that could not be turned into a
// provider instance.
type ConfigError struct {
	ProviderID string
	Plugin     string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("secret: provider %q (plugin %q): %v", e.ProviderID, e.Plugin, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
