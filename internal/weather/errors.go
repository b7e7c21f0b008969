package weather

import "errors"

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrInvalidResponse is returned when a payload is malformed or has an unexpected shape.
	ErrInvalidResponse = errors.New("invalid response")

	// Device location failures.
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnsupported      = errors.New("location unsupported")

	// ErrCancelled marks an operation that was superseded or aborted. It is never
	// surfaced to presentation layers.
	ErrCancelled = errors.New("operation cancelled")
)
