package urls

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve resolves ref against base and returns an absolute URL.
//
// Absolute references are returned as-is, host-relative references ("/x")
// inherit the scheme and host of base, and path-relative references ("x")
// are resolved against the directory of base, which is everything up to the
// last "/" in its path. A base without a path is treated as "/".
//
// References that are empty, malformed, opaque (mailto:, javascript:, tel:,
// data:) or use a scheme other than http and https yield ErrUnparseableURL.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnparseableURL)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnparseableURL, ref, err)
	}

	if u.Opaque != "" || (u.Scheme != "" && !isWebScheme(u.Scheme)) {
		return nil, fmt.Errorf("%w: %q is not a web URL", ErrUnparseableURL, ref)
	}

	if !u.IsAbs() {
		if base == nil {
			return nil, fmt.Errorf("%w: relative reference %q without base", ErrUnparseableURL, ref)
		}
		u = base.ResolveReference(u)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrUnparseableURL, ref)
	}

	return u, nil
}

// ResolveAll resolves every ref against base and drops the ones that fail.
// The skipped references are returned alongside so that callers can log
// them.
func ResolveAll(base *url.URL, refs []string) (resolved []*url.URL, skipped []string) {
	resolved = make([]*url.URL, 0, len(refs))
	for _, ref := range refs {
		u, err := Resolve(base, ref)
		if err != nil {
			skipped = append(skipped, ref)
			continue
		}
		resolved = append(resolved, u)
	}
	return resolved, skipped
}

func isWebScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
