// Package pipeline runs work items through a fixed pool of workers.
//
// Work lives in a Queue. Workers pop items, may push new ones while they
// handle them (the crawler does this with discovered links), and report
// completion with Done. The queue knows how many items are being worked on,
// so it can tell the difference between "empty for now" and "empty for
// good": Pop blocks in the first case and reports quiescence in the second.
//
// The same pool serves crawling and bulk purging. An optional token bucket
// (github.com/vnykmshr/goflow) caps the request rate across all workers.
package pipeline
