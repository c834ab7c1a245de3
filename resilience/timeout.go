package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds a single call.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper. A non-positive duration disables it.
func NewTimeout(d time.Duration) *Timeout {
	return &Timeout{d: d}
}

// Duration returns the configured bound.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op with a deadline. It returns as soon as the deadline
// passes even if op ignores its context; op keeps running in the background
// and its late result is discarded.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	if t == nil || t.d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return ctx.Err()
	}
}
