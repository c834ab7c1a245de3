// Package resilience guards provider calls.
//
// A provider declaration may ask for a timeout, a retry policy and a circuit
// breaker. Policy collects those settings and NewExecutor composes them
// around a single call:
//
//	exec := resilience.NewExecutor(resilience.Policy{
//	    Timeout: 2 * time.Second,
//	    Retry:   &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
//	})
//
//	m, err := resilience.Call(ctx, exec, func(ctx context.Context) (secret.Map, error) {
//	    return fetch(ctx)
//	})
//
// A zero Policy applies no deadline and no retry: a provider call that never
// completes is the provider's own fault unless a timeout is configured.
// The renewal service reuses Retry for its ticks.
package resilience
