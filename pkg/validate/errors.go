package validate

import "errors"

var (
	// ErrRegistry wraps failures to download or read the service registry.
	ErrRegistry = errors.New("validate: cannot read registry")

	// ErrNoServices is returned when no registry entry is left to validate.
	ErrNoServices = errors.New("validate: no services to validate")

	// ErrResultCountMismatch means fewer (or more) results were collected
	// than services were submitted.
	ErrResultCountMismatch = errors.New("validate: result count does not match submitted services")

	// ErrInvalidValidationAttribute is returned when a service's diagnostics
	// fit none of the status buckets.
	ErrInvalidValidationAttribute = errors.New("validate: invalid validation attributes")
)
