// Package resolver turns secret mounts into cache entries.
//
// Service looks a provider up for an environment, asks it for the bundle
// and normalizes the outcome into a cache.Entry. Provider failures never
// escape: they become ERROR entries. A provider that is not deployed is a
// configuration defect and is returned as an error.
//
// Each provider call may be guarded by a resilience.Executor configured per
// provider declaration, and is traced and measured through observe.
package resolver
