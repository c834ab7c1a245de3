package grant

import (
	"errors"
	"fmt"
)

// Sentinel errors for authorization.
var (
	// ErrSpecNotFound indicates discovery could not locate the Spec a reference points to.
	ErrSpecNotFound = errors.New("grant: secret spec not found")

	// ErrNilContext indicates a nil discovery context.
	ErrNilContext = errors.New("grant: discovery context is nil")

	// ErrInvalidToken indicates a grant token that cannot be verified.
	ErrInvalidToken = errors.New("grant: invalid token")
)

// SpecNotFoundError is returned by Authorize when no Spec matches a reference.
type SpecNotFoundError struct {
	// Ref is the raw reference literal.
	Ref string

	// EnvID is the environment of the discovery context.
	EnvID string

	// OnTheFlyAllowed reports whether on-the-fly deployment was enabled.
	OnTheFlyAllowed bool
}

// Error returns the error message.
func (e *SpecNotFoundError) Error() string {
	return fmt.Sprintf("grant: secret spec not found: ref=%q env=%q on_the_fly_allowed=%t",
		e.Ref, e.EnvID, e.OnTheFlyAllowed)
}

// Is reports whether this error matches the target.
func (e *SpecNotFoundError) Is(target error) bool {
	return target == ErrSpecNotFound
}
