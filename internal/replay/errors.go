package replay

import "errors"

var (
	// ErrInvalidConfig is returned for unusable run settings.
	ErrInvalidConfig = errors.New("invalid replay config")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrNotApplied is returned when the service view does not reflect the
	// submitted batches.
	ErrNotApplied = errors.New("batches not applied")
)
