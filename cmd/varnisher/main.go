// Package main provides the entry point for the varnisher CLI.
//
// varnisher purges pages, their resources and whole sites from a Varnish
// cache. It finds what to purge by fetching pages and crawling links.
//
// Usage:
//
//	varnisher purge <url|hostname>
//	varnisher spider <url|hostname> [--purge]
//	varnisher history
//
// See --help for all available options.
package main

// main is the entry point for varnisher.
func main() {
	Execute()
}
