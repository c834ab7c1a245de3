package spec

import "errors"

// Sentinel errors for reference parsing and spec validation.
var (
	// ErrMalformedRef indicates a reference literal that cannot be parsed.
	ErrMalformedRef = errors.New("spec: malformed reference")

	// ErrInvalidSpec indicates a Spec that fails validation.
	ErrInvalidSpec = errors.New("spec: invalid spec")

	// ErrNilSpec indicates a nil Spec was provided.
	ErrNilSpec = errors.New("spec: spec is nil")
)
