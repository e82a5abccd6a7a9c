// Package database provides SQLite-based run history for varnisher.
//
// This package implements the HistoryDB, which stores:
//   - One row per run with its counts and the full report as JSON
//   - One row per purge request, so the purges of a URL can be audited
//
// The history is an audit log. Crawls never read it back: every crawl
// starts with an empty visited set.
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file with
// no CGO and no server.
package database
