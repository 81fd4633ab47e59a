package checks

import "errors"

var (
	// ErrUnexpectedStatus indicates an HTTP probe got a status outside the
	// expected range.
	ErrUnexpectedStatus = errors.New("checks: unexpected status code")

	// ErrNotServing indicates a gRPC health service reported anything but
	// SERVING.
	ErrNotServing = errors.New("checks: service not serving")

	// ErrMissingTarget indicates a check was built without its target.
	ErrMissingTarget = errors.New("checks: target is required")
)
