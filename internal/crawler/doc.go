// Package crawler discovers the pages of a site by following links from a
// seed page.
//
// # Architecture
//
// A Spider fetches the seed page on its own, then hands the frontier to a
// pipeline.Pool. Every worker runs the same per-URL steps:
//
//  1. Claim the URL in the visited set (test and insert in one step).
//  2. Fetch it, following at most ten redirects; every redirect target is
//     claimed in the visited set as well.
//  3. Extract anchors and URLs mentioned in comments, optionally only from
//     the parts of the page matching a CSS scope.
//  4. Resolve, normalize and filter the links: same host as the seed only,
//     rewritten to http, not visited and not already queued.
//  5. Count the page as hit.
//
// The crawl stops when the frontier drains or when more pages than the
// configured limit have been hit.
//
// # Usage
//
//	spider := crawler.NewSpider(f, crawler.WithMaxPages(100))
//	result, err := spider.Run(ctx, "www.example.com")
package crawler
