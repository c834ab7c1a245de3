package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrDuplicateProvider indicates two declarations sharing an id and environment.
	ErrDuplicateProvider = errors.New("config: duplicate provider")
)
