package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoTarget is returned when no URL or hostname was given.
	ErrNoTarget = errors.New("no target specified: provide a URL or a hostname")

	// ErrInvalidPort is returned when the proxy port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidConcurrency is returned when the number of threads is not positive.
	ErrInvalidConcurrency = errors.New("invalid number of threads: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is below -1.
	// -1 means no limit.
	ErrInvalidMaxPages = errors.New("invalid number of pages: must be -1 or more")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRedirects is returned when the redirect budget is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	// Use 0 for no limit.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrConflictingVerbosity is returned when both --verbose and --quiet
	// are specified.
	ErrConflictingVerbosity = errors.New("conflicting log levels: --verbose and --quiet cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFile is returned when the configuration file cannot be
	// parsed or holds a value of the wrong form.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)
