package urls

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// TargetKind tells whether a command-line target names a single page or a
// whole domain.
type TargetKind int

const (
	// TargetPage is an absolute URL such as http://example.com/foo.
	TargetPage TargetKind = iota

	// TargetDomain is a bare hostname such as www.example.com.
	TargetDomain
)

// String returns the name of the target kind.
func (k TargetKind) String() string {
	switch k {
	case TargetPage:
		return "page"
	case TargetDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// hostnamePattern matches RFC 1123 style hostnames. The final label must
// start with a letter, so dotted IP addresses are not treated as hostnames.
var hostnamePattern = regexp.MustCompile(
	`^(([a-zA-Z]|[a-zA-Z][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z]|[A-Za-z][A-Za-z0-9\-]*[A-Za-z0-9])$`,
)

// schemePattern matches the start of an absolute URL.
var schemePattern = regexp.MustCompile(`^[a-z]+://`)

// IsHostname reports whether s is a bare hostname.
func IsHostname(s string) bool {
	return hostnamePattern.MatchString(s)
}

// ClassifyTarget decides whether target should be purged as a page or as a
// domain.
func ClassifyTarget(target string) (TargetKind, error) {
	target = strings.TrimSpace(target)
	switch {
	case schemePattern.MatchString(target):
		return TargetPage, nil
	case IsHostname(target):
		return TargetDomain, nil
	default:
		return TargetPage, fmt.Errorf("%w: %q is neither a URL nor a hostname", ErrUnparseableURL, target)
	}
}

// SeedURL parses the starting point of a crawl. A bare hostname is taken to
// mean the http root of that host.
func SeedURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if IsHostname(raw) {
		raw = "http://" + raw + "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnparseableURL, raw, err)
	}
	if !isWebScheme(u.Scheme) || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http URL", ErrUnparseableURL, raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}
