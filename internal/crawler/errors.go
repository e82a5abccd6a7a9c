package crawler

import "errors"

// ErrAlreadyVisited is returned by CrawlPage for URLs another worker
// already claimed.
var ErrAlreadyVisited = errors.New("already visited")
