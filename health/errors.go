package health

import "errors"

var (
	// ErrCheckTimeout indicates a check did not finish before the run deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked indicates a check panicked. The panic is contained.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
