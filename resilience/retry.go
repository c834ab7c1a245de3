package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures exponential backoff retries.
type RetryConfig struct {
	// MaxAttempts counts every call, the first one included.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier grows the wait after each failed attempt.
	// Default: 2.0
	Multiplier float64

	// Jitter stretches each wait by up to a quarter, so renewals of many
	// Specs on one provider do not retry in lockstep.
	Jitter bool

	// RetryIf reports whether err is worth another attempt. Errors marked
	// Permanent never are.
	// Default: every non-nil error.
	RetryIf func(err error) bool

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrMaxRetriesExceeded, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is matches ErrMaxRetriesExceeded.
func (e *ExhaustedError) Is(target error) bool { return target == ErrMaxRetriesExceeded }

// Retry runs an operation until it succeeds or attempts run out.
type Retry struct {
	config RetryConfig
}

// NewRetry applies defaults to config.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = config.InitialDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{config: config}
}

// Execute calls op at most MaxAttempts times. A single-attempt Retry returns
// op's error unchanged; otherwise exhaustion yields an *ExhaustedError.
// Cancellation during a wait returns ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	wait := r.config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err) || !r.config.RetryIf(err):
			return err
		case attempt == r.config.MaxAttempts && attempt == 1:
			return err
		case attempt == r.config.MaxAttempts:
			return &ExhaustedError{Attempts: attempt, Last: err}
		}

		d := r.jitter(wait)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, d)
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
		wait = r.grow(wait)
	}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// grow returns the wait following d, capped at MaxDelay.
func (r *Retry) grow(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * r.config.Multiplier)
	if next > r.config.MaxDelay || next < d {
		return r.config.MaxDelay
	}
	return next
}

func (r *Retry) jitter(d time.Duration) time.Duration {
	if !r.config.Jitter || d < 4 {
		return d
	}
	// #nosec G404 -- timing variance only.
	return d + time.Duration(rand.Int64N(int64(d/4)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
