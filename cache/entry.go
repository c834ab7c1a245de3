package cache

import (
	"fmt"
	"maps"
	"time"

	"github.com/jonwraymond/secretops/secret"
)

// Kind tags the outcome stored in an Entry.
type Kind int

const (
	KindValue Kind = iota + 1
	KindNotFound
	KindEmpty
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "VALUE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindEmpty:
		return "EMPTY"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is the outcome of one resolution. Every outcome, including provider
// failures, is representable; the zero Entry is invalid.
type Entry struct {
	Kind  Kind
	Value map[string]secret.Secret

	// Error is the provider failure message of a KindError entry.
	Error string

	// ExpireAt is the absolute expiry stamped on TTL values. Zero means none.
	ExpireAt time.Time
}

// ValueEntry wraps a resolved bundle, carrying its expiry.
func ValueEntry(m secret.Map) Entry {
	return Entry{Kind: KindValue, Value: m.AsMap(), ExpireAt: m.ExpireAt()}
}

// NotFoundEntry records that the provider has no such secret.
func NotFoundEntry() Entry {
	return Entry{Kind: KindNotFound}
}

// EmptyEntry records a secret that exists but holds no keys.
func EmptyEntry() Entry {
	return Entry{Kind: KindEmpty}
}

// ErrorEntry records a provider failure.
func ErrorEntry(msg string) Entry {
	return Entry{Kind: KindError, Error: msg}
}

// IsValue reports whether the entry holds secret data.
func (e Entry) IsValue() bool { return e.Kind == KindValue }

// IsError reports whether the entry records a provider failure.
func (e Entry) IsError() bool { return e.Kind == KindError }

// Get returns one key of a value entry.
func (e Entry) Get(key string) (secret.Secret, bool) {
	if e.Kind != KindValue {
		return secret.Secret{}, false
	}
	s, ok := e.Value[key]
	return s, ok
}

// Expired reports whether the entry carries an expiry at or before now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// Clone returns a copy that shares no map with e.
func (e Entry) Clone() Entry {
	e.Value = maps.Clone(e.Value)
	return e
}

func (e Entry) String() string {
	switch e.Kind {
	case KindValue:
		return fmt.Sprintf("Entry{%s keys=%d}", e.Kind, len(e.Value))
	case KindError:
		return fmt.Sprintf("Entry{%s %q}", e.Kind, e.Error)
	default:
		return fmt.Sprintf("Entry{%s}", e.Kind)
	}
}
