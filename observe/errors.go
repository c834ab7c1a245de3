package observe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/secretops/observe/exporters"
)

// Configuration errors.
var (
	// ErrMissingServiceName indicates Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct indicates Tracing.SamplePct is not in [0.0, 1.0].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")
)

// ErrEndpointNotConfigured indicates a required endpoint environment variable is not set.
var ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured

// ChoiceError reports a configuration value outside its allowed set.
type ChoiceError struct {
	Kind    error
	Value   string
	Allowed []string
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("%v %q (allowed: %s)", e.Kind, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *ChoiceError) Unwrap() error { return e.Kind }

var (
	tracingExporters = []string{"otlp", "stdout", "none"}
	metricsExporters = []string{"otlp", "prometheus", "stdout", "none"}
	logLevels        = []string{"debug", "info", "warn", "error"}
)

// checkChoice accepts v when it is empty or one of allowed.
func checkChoice(kind error, v string, allowed []string) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &ChoiceError{Kind: kind, Value: v, Allowed: allowed}
}

// Field keys whose values are replaced by [REDACTED]. Matching ignores case:
// sensitiveKeys match exactly, sensitiveSuffixes match the end of a key, so
// "redisPassword" and "client_secret" are covered.
var (
	sensitiveKeys = map[string]bool{
		"value":         true,
		"data":          true,
		"secrets":       true,
		"credential":    true,
		"credentials":   true,
		"authorization": true,
	}
	sensitiveSuffixes = []string{"password", "secret", "token", "_key", "apikey", "signingkey", "privatekey"}
)

// IsSensitiveKey reports whether a log field named key is redacted.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, s := range sensitiveSuffixes {
		if strings.HasSuffix(k, s) {
			return true
		}
	}
	return false
}
