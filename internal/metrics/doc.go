// Package metrics exposes Prometheus counters and histograms for purge and
// crawl runs.
//
// A Collector owns its own registry, so several collectors can live in one
// process (tests create one per case). Every method is safe to call on a
// nil *Collector, which lets components record unconditionally while the
// CLI decides whether metrics are enabled at all.
package metrics
