// Package cache stores secret resolution outcomes.
//
// Entries are keyed by (environment, natural id) and hold one of four
// outcomes: a value bundle, not found, empty, or a provider error. Failures
// are cached like values so repeated template evaluation does not call a
// provider again; eviction or renewal is the only way to refresh an entry.
//
// MemoryCache segments the key space per environment and deduplicates
// concurrent ComputeIfAbsent calls with singleflight.
package cache
