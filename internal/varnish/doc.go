// Package varnish implements the client side of the Varnish purge protocol.
//
// A purge is a plain HTTP/1.1 request with a custom method sent straight to
// the cache proxy over a fresh TCP connection:
//
//	PURGE /path HTTP/1.1
//	Host: www.example.com
//
// The proxy answers 200 when the object was evicted. DOMAINPURGE works the
// same way with path "/" and evicts every object of the host. The methods
// are not part of HTTP, so the cache must be configured to accept them.
//
// # Usage
//
//	client := varnish.NewClient("127.0.0.1:6081", varnish.WithTimeout(5*time.Second))
//	res := client.Purge(ctx, "http://www.example.com/foo", varnish.Page)
//	if res.Err != nil {
//	    // errors.Is(res.Err, varnish.ErrPurgeRejected), ...
//	}
//
// The client never retries and never panics: every outcome, including
// network failures, is reported through Result.
package varnish
