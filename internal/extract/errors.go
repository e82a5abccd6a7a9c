package extract

import "errors"

// ErrInvalidScope is returned when a scope selector is not valid CSS.
var ErrInvalidScope = errors.New("invalid scope selector")
