package renewal

import "errors"

var (
	// ErrNotRenewable indicates a Spec whose resolution needs no renewal.
	ErrNotRenewable = errors.New("renewal: spec does not need renewal")

	// ErrNotScheduled indicates no subscription exists for a key.
	ErrNotScheduled = errors.New("renewal: no subscription")

	// ErrStopped indicates the service was stopped.
	ErrStopped = errors.New("renewal: service stopped")
)
