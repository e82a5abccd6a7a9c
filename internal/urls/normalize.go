package urls

import (
	"net/url"
	"strings"
)

// Policy controls which URL components take part in equality checks.
// The two toggles are independent and can be combined.
type Policy struct {
	// IgnoreHashes drops the fragment, so /a#x and /a#y are the same page.
	IgnoreHashes bool

	// IgnoreQueryStrings drops the query, so /a?x=1 and /a?x=2 are the
	// same page.
	IgnoreQueryStrings bool
}

// DefaultPolicy ignores fragments and keeps query strings.
func DefaultPolicy() Policy {
	return Policy{
		IgnoreHashes:       true,
		IgnoreQueryStrings: false,
	}
}

// Normalize returns a normalized copy of u. The input is not modified.
//
// The scheme and host are lower-cased and an empty path becomes "/". The
// fragment and query are cleared when the policy says so. Normalize is
// idempotent: Normalize(Normalize(u, p), p) equals Normalize(u, p).
func Normalize(u *url.URL, p Policy) *url.URL {
	n := *u
	if u.User != nil {
		user := *u.User
		n.User = &user
	}

	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
		n.RawPath = ""
	}

	if p.IgnoreHashes {
		n.Fragment = ""
		n.RawFragment = ""
	}
	if p.IgnoreQueryStrings {
		n.RawQuery = ""
		n.ForceQuery = false
	}

	return &n
}

// Canonical returns the comparison key of u under p.
func Canonical(u *url.URL, p Policy) string {
	return Normalize(u, p).String()
}

// Dedupe normalizes every URL and collapses the ones with equal canonical
// forms. The first URL seen for each canonical form is kept, so the output
// order follows the input order.
func Dedupe(us []*url.URL, p Policy) []*url.URL {
	seen := make(map[string]struct{}, len(us))
	out := make([]*url.URL, 0, len(us))
	for _, u := range us {
		n := Normalize(u, p)
		key := n.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// IsCrawlable reports whether the crawler may follow u from a crawl seeded
// on seedHost. The host must match exactly (port included, no subdomains)
// and the scheme must be http or https.
func IsCrawlable(u *url.URL, seedHost string) bool {
	if u == nil || !isWebScheme(u.Scheme) {
		return false
	}
	return strings.EqualFold(u.Host, seedHost)
}

// IsPurgeable reports whether u can be sent to the cache as a PURGE. Only
// plain http URLs on seedHost qualify.
func IsPurgeable(u *url.URL, seedHost string) bool {
	if u == nil || !strings.EqualFold(u.Scheme, "http") {
		return false
	}
	return strings.EqualFold(u.Host, seedHost)
}

// AsHTTP returns u with an https scheme rewritten to http. Other schemes
// are left alone. The input is not modified.
func AsHTTP(u *url.URL) *url.URL {
	if !strings.EqualFold(u.Scheme, "https") {
		return u
	}
	n := *u
	n.Scheme = "http"
	return &n
}
