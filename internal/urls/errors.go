package urls

import "errors"

// ErrUnparseableURL is returned when a reference cannot be turned into an
// absolute web URL. Callers log and skip the reference; it is never fatal.
// Non-web references such as mailto: and javascript: links are reported
// with this error as well.
var ErrUnparseableURL = errors.New("unparseable URL")
