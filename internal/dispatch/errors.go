package dispatch

import "errors"

var (
	// ErrInvalidRequest is returned for requests that fail validation
	// before any backend is contacted (empty prompt, out-of-range
	// temperature, negative max tokens).
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrProviderUnavailable is returned when the caller explicitly names
	// a backend that has no credential configured.
	ErrProviderUnavailable = errors.New("requested provider is not configured")

	// ErrNoProviderConfigured is returned when neither backend has a
	// credential configured.
	ErrNoProviderConfigured = errors.New("no text generation provider is configured")

	// ErrUpstream wraps any failure from the selected backend: transport
	// errors, timeouts, and non-success status codes. The backend's message
	// is preserved but its concrete error types are not.
	ErrUpstream = errors.New("provider request failed")
)
