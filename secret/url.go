package secret

import (
	"fmt"
	"net/url"
	"strings"
)

// Scheme is the URL scheme of the scheme form of a secret URL.
const Scheme = "secret"

// URL is a parsed secret location. The first segment names the provider;
// the rest is interpreted by that provider.
type URL struct {
	Provider string
	Path     string
	Key      string
	Query    url.Values
	Raw      string
}

// ParseURL parses "/provider/path[?query]" or "secret://provider/path[?query]".
// The key is carried separately by Specs and set with WithKey.
func ParseURL(raw string) (URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return URL{}, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	var rest string
	switch {
	case strings.HasPrefix(s, Scheme+"://"):
		rest = strings.TrimPrefix(s, Scheme+"://")
	case strings.HasPrefix(s, "/"):
		rest = strings.TrimPrefix(s, "/")
	default:
		return URL{}, fmt.Errorf("%w: %q must start with / or %s://", ErrInvalidURL, raw, Scheme)
	}

	var query url.Values
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		q, err := url.ParseQuery(rest[i+1:])
		if err != nil {
			return URL{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
		}
		query = q
		rest = rest[:i]
	}

	provider, path, _ := strings.Cut(rest, "/")
	path = strings.Trim(path, "/")
	if provider == "" {
		return URL{}, fmt.Errorf("%w: %q has no provider", ErrInvalidURL, raw)
	}
	if path == "" {
		return URL{}, fmt.Errorf("%w: %q has no path", ErrInvalidURL, raw)
	}
	return URL{Provider: provider, Path: path, Query: query, Raw: raw}, nil
}

// WithKey returns a copy of u addressing key.
func (u URL) WithKey(key string) URL {
	u.Key = key
	return u
}

func (u URL) String() string {
	s := "/" + u.Provider + "/" + u.Path
	if u.Key != "" {
		s += ":" + u.Key
	}
	if len(u.Query) > 0 {
		s += "?" + u.Query.Encode()
	}
	return s
}

// Mount is a provider-specific resolved location, produced by
// Provider.FromURL.
type Mount struct {
	Provider string
	Location string
	Key      string
	Options  map[string]string

	// URL is the URL the mount was derived from.
	URL URL
}

// DefaultMount maps a URL onto a Mount without any provider-specific
// interpretation: the path becomes the location, single-valued query
// parameters become options.
func DefaultMount(u URL) Mount {
	m := Mount{
		Provider: u.Provider,
		Location: u.Path,
		Key:      u.Key,
		URL:      u,
	}
	if len(u.Query) > 0 {
		m.Options = make(map[string]string, len(u.Query))
		for k, v := range u.Query {
			if len(v) > 0 {
				m.Options[k] = v[0]
			}
		}
	}
	return m
}

// Option returns the named option or def.
func (m Mount) Option(name, def string) string {
	if v, ok := m.Options[name]; ok {
		return v
	}
	return def
}

func (m Mount) String() string {
	s := "/" + m.Provider + "/" + m.Location
	if m.Key != "" {
		s += ":" + m.Key
	}
	return s
}
