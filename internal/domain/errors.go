package domain

import "errors"

// Error taxonomy shared by services, adapters and the HTTP layer.
var (
	// ErrNotConnected: a required third-party integration has no token.
	ErrNotConnected = errors.New("integration not connected")
	// ErrUpstreamAuth: upstream rejected our credentials.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrNotFound: a referenced report, ticket or alert does not exist.
	ErrNotFound = errors.New("not found")
)
