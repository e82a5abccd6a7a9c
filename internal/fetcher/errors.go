package fetcher

import "errors"

var (
	// ErrFetchFailure is returned for network errors, unexpected status
	// codes and unreadable bodies.
	ErrFetchFailure = errors.New("fetch failed")

	// ErrRedirectLoopExceeded is returned when a page redirects more times
	// than the hop budget allows.
	ErrRedirectLoopExceeded = errors.New("redirect limit exceeded")

	// ErrRedirectRejected is returned when the caller refused to follow a
	// redirect, typically because the target was already visited or lives
	// on another host.
	ErrRedirectRejected = errors.New("redirect target rejected")
)
