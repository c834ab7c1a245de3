package lifecycle

import "errors"

var (
	// ErrNotDeployed indicates an undeploy of a Spec that is not registered.
	ErrNotDeployed = errors.New("lifecycle: spec not deployed")

	// ErrOnTheFlyNotAllowed indicates a reference that cannot be deployed on the fly.
	ErrOnTheFlyNotAllowed = errors.New("lifecycle: reference not eligible for on-the-fly deployment")

	// ErrStopped indicates the runtime was stopped.
	ErrStopped = errors.New("lifecycle: runtime stopped")
)
