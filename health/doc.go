// Package health reports the state of the secrets runtime.
//
// A Checker inspects one concern (provider registrations, cached error
// entries, renewal failures) and returns a Result. An Aggregator runs its
// checkers concurrently under a deadline and folds their results into a
// Report whose status is the worst of its parts.
//
// Transient provider failures are reported as degraded: the runtime keeps
// serving last-known-good values while a provider is down.
package health
