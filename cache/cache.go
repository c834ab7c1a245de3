package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a natural id.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrNilCompute = errors.New("cache: compute function is nil")
)

// Key addresses one entry: the natural id of a Spec within an environment.
type Key struct {
	EnvID     string
	NaturalID string
}

// Cache stores resolution outcomes segmented by environment.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Segmentation: entries of different environments never alias.
// - Get never errors; it returns (Entry{}, false) on miss.
// - Entries of every Kind are stored; nothing expires by itself.
// - ComputeIfAbsent runs fn at most once per key among concurrent callers
//   and never replaces an entry that appeared meanwhile.
type Cache interface {
	Get(ctx context.Context, envID, naturalID string) (Entry, bool)
	Put(ctx context.Context, envID, naturalID string, e Entry) error
	ComputeIfAbsent(ctx context.Context, envID, naturalID string, fn func(context.Context) Entry) (Entry, error)
	Evict(ctx context.Context, envID, naturalID string) error
}

// ValidateKey checks that a natural id can be used as a cache key.
func ValidateKey(naturalID string) error {
	if strings.TrimSpace(naturalID) == "" {
		return ErrInvalidKey
	}
	if len(naturalID) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(naturalID, "\n\r\x00") {
		return ErrInvalidKey
	}
	return nil
}
