package purger

import (
	"context"
	"errors"
)

// ErrConfiguration is returned when the run cannot proceed because the
// cache proxy is unreachable, which usually means a wrong host or port.
var ErrConfiguration = errors.New("configuration error")

// IsFatal reports whether err should abort a run over several targets.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
