package varnish

import "errors"

var (
	// ErrInvalidTarget is returned when the purge target cannot be turned
	// into a host and a path.
	ErrInvalidTarget = errors.New("invalid purge target")

	// ErrProxyUnreachable is returned when no TCP connection to the cache
	// proxy could be established.
	ErrProxyUnreachable = errors.New("cache proxy unreachable")

	// ErrTimeout is returned when the proxy did not answer within the
	// configured timeout.
	ErrTimeout = errors.New("purge request timed out")

	// ErrPurgeRejected is returned when the proxy answered with anything
	// other than 200, or with no valid HTTP response at all.
	ErrPurgeRejected = errors.New("purge rejected by cache proxy")
)
