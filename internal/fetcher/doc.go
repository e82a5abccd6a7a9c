// Package fetcher performs the HTTP GETs shared by the crawler and the page
// purger.
//
// Redirects are not followed by net/http. Follow walks them itself with a
// hop budget and lets the caller veto every hop, so the crawler can refuse
// to land on a page it has already seen or on another host.
//
// # Usage
//
//	f := fetcher.NewFetcher(fetcher.WithTimeout(10*time.Second))
//	page, err := f.Follow(ctx, u, nil)
//	if errors.Is(err, fetcher.ErrRedirectLoopExceeded) {
//	    // too many hops
//	}
package fetcher
