package resilience

import (
	"context"
	"sync"
	"time"
)

// Policy is the resilience configuration of one provider.
// Nil fields disable the corresponding guard.
type Policy struct {
	Timeout        time.Duration
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
}

// IsZero reports whether the policy configures no guard at all.
func (p Policy) IsZero() bool {
	return p.Timeout <= 0 && p.Retry == nil && p.CircuitBreaker == nil
}

// Executor composes the guards of a Policy.
//
// The execution order, outermost first, is:
// 1. Circuit Breaker - one outcome per call, retries included
// 2. Retry - retries on failure
// 3. Timeout - bounds each attempt
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// NewExecutor builds the guards described by p.
func NewExecutor(p Policy) *Executor {
	e := &Executor{}
	if p.Timeout > 0 {
		e.timeout = NewTimeout(p.Timeout)
	}
	if p.Retry != nil {
		e.retry = NewRetry(*p.Retry)
	}
	if p.CircuitBreaker != nil {
		e.circuitBreaker = NewCircuitBreaker(*p.CircuitBreaker)
	}
	return e
}

// CircuitBreaker returns the executor's breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	if e == nil {
		return nil
	}
	return e.circuitBreaker
}

// Execute runs op through the configured guards. A nil Executor runs op directly.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	execute := op
	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.timeout.Execute(ctx, inner) }
	}
	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.circuitBreaker.Execute(ctx, inner) }
	}
	return execute(ctx)
}

// Call runs op through e and returns the value of the successful attempt.
func Call[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		// An attempt abandoned by a timeout may still finish late.
		mu.Lock()
		out = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	mu.Lock()
	defer mu.Unlock()
	return out, nil
}
