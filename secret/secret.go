package secret

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"time"
)

const masked = "******"

// Secret is an opaque secret value. Its String form is always masked.
type Secret struct {
	data []byte
}

// NewSecret wraps a string value.
func NewSecret(value string) Secret {
	return Secret{data: []byte(value)}
}

// FromBytes wraps a copy of b.
func FromBytes(b []byte) Secret {
	return Secret{data: bytes.Clone(b)}
}

// Value returns the secret as a string.
func (s Secret) Value() string {
	return string(s.data)
}

// Bytes returns a copy of the secret bytes.
func (s Secret) Bytes() []byte {
	return bytes.Clone(s.data)
}

// IsEmpty reports whether the secret holds no bytes.
func (s Secret) IsEmpty() bool {
	return len(s.data) == 0
}

// Equal reports whether both secrets hold the same bytes.
func (s Secret) Equal(other Secret) bool {
	return bytes.Equal(s.data, other.data)
}

func (s Secret) String() string   { return masked }
func (s Secret) GoString() string { return "secret.Secret{" + masked + "}" }

// Map is a secret bundle: the key/value set returned by one provider read.
// A zero ExpireAt means the bundle does not expire.
type Map struct {
	data     map[string]Secret
	expireAt time.Time
}

// NewMap creates a bundle from data. The map is copied.
func NewMap(data map[string]Secret) Map {
	return Map{data: maps.Clone(data)}
}

// MapOf creates a bundle from plain string values.
func MapOf(values map[string]string) Map {
	data := make(map[string]Secret, len(values))
	for k, v := range values {
		data[k] = NewSecret(v)
	}
	return Map{data: data}
}

// AsMap returns a copy of the bundle contents.
func (m Map) AsMap() map[string]Secret {
	if m.data == nil {
		return map[string]Secret{}
	}
	return maps.Clone(m.data)
}

// Get returns the secret stored under key.
func (m Map) Get(key string) (Secret, bool) {
	s, ok := m.data[key]
	return s, ok
}

// Keys returns the bundle keys, sorted.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m.data))
}

// Len returns the number of keys in the bundle.
func (m Map) Len() int {
	return len(m.data)
}

// IsEmpty reports whether the bundle holds no keys.
func (m Map) IsEmpty() bool {
	return len(m.data) == 0
}

// ExpireAt returns the absolute expiry of the bundle, zero if none.
func (m Map) ExpireAt() time.Time {
	return m.expireAt
}

// WithExpireAt returns a copy of the bundle stamped with t.
func (m Map) WithExpireAt(t time.Time) Map {
	m.expireAt = t
	return m
}

// Equal reports whether both bundles hold the same keys and values.
// Expiry is ignored.
func (m Map) Equal(other Map) bool {
	return maps.EqualFunc(m.data, other.data, Secret.Equal)
}

func (m Map) String() string {
	return "secret.Map{keys=[" + strings.Join(m.Keys(), " ") + "]}"
}
