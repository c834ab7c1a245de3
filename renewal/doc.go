// Package renewal keeps resolved secrets fresh.
//
// A Spec whose resolution is TTL gets a one-shot timer that re-resolves it
// shortly before the stamped expiry, then re-arms from the new expiry. A
// POLL Spec is re-resolved by a cron scheduler at its interval. A Spec
// with watch enabled also follows the provider's change events.
//
// A tick that fails never overwrites the cache: the last known good value
// stays in place and the failure is logged, counted and reported to health.
// Cancel is synchronous: once it returns no tick or event of the cancelled
// subscription writes to the cache.
package renewal
