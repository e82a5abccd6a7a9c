// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - The three log levels of varnisher: verbose, default and quiet
//   - A size-rotated log file for the output-file option
//
// # Security Features
//
// Crawl requests may carry a cookie and custom headers holding credentials.
// The SecureHandler sanitizes them in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Header maps, entry by entry
//   - Secret values detected by pattern matching (bearer tokens, JWTs, keys)
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.LevelFor(verbose, quiet))
//
//	logger.Info("fetching",
//	    "cookie", "session=abc123", // logged as ***REDACTED***
//	    "url", "http://www.example.com/",
//	)
//
//	slog.SetDefault(logger)
package log
