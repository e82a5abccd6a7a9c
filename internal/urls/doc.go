// Package urls turns raw href values into absolute, comparable URLs.
//
// Every URL the crawler or the page purger acts on passes through this
// package: references are resolved against the page they were found on,
// normalized according to a Policy, and then filtered so that only URLs on
// the seed host are crawled or purged.
//
// # Canonical form
//
// Two URLs are the same target when their Canonical strings are equal.
// The Policy decides whether fragments and query strings take part in that
// comparison:
//
//	p := urls.DefaultPolicy() // fragments ignored, query strings kept
//	a, _ := url.Parse("http://example.com/a#top")
//	b, _ := url.Parse("http://example.com/a#bottom")
//	urls.Canonical(a, p) == urls.Canonical(b, p) // true
package urls
