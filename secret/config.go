package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeConfig decodes a generic configuration map into out, a pointer to a
// provider-specific struct with yaml tags. Unknown fields are rejected.
func DecodeConfig(cfg map[string]any, out any) error {
	if len(cfg) == 0 {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ExpandConfig returns a copy of cfg with ExpandString applied to every
// string against the process environment, recursively through nested maps
// and lists.
func ExpandConfig(cfg map[string]any) (map[string]any, error) {
	return ExpandConfigWith(cfg, os.LookupEnv)
}

// ExpandConfigWith is ExpandConfig with an explicit variable source.
func ExpandConfigWith(cfg map[string]any, lookup Lookup) (map[string]any, error) {
	if cfg == nil {
		return nil, nil
	}
	out, err := expandValue(cfg, lookup)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func expandValue(v any, lookup Lookup) (any, error) {
	switch t := v.(type) {
	case string:
		return ExpandString(t, lookup)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			expanded, err := expandValue(item, lookup)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			expanded, err := expandValue(item, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}
