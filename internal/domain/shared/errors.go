package shared

import "errors"

// Sentinel errors shared across components. Handlers map these onto HTTP
// status codes; spawners map them onto cycle outcomes.
var (
	// ErrNotFound marks a lookup for an unknown identifier.
	ErrNotFound = errors.New("not found")

	// ErrNoGeometry marks a route whose polyline is missing or empty.
	// A spawner observing it fails the current cycle.
	ErrNoGeometry = errors.New("route geometry unavailable")

	// ErrUnauthorized marks a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation marks malformed input at a service boundary.
	ErrValidation = errors.New("validation failed")
)
