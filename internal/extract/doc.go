// Package extract pulls URL references out of HTML documents.
//
// It works in two modes. Page mode returns the static resources a page
// depends on (stylesheets, scripts and images), which is what must be
// purged together with the page itself. Crawl mode returns anchor targets
// plus any http(s) URLs mentioned inside HTML comments, which is how the
// spider discovers new pages.
//
// All values are returned exactly as they appear in the markup. Resolving
// them against the page URL is the caller's job (see package urls).
package extract
