package inspect

import "errors"

// ErrUnknownStatus is returned for a status other than good, warn,
// exception or error.
var ErrUnknownStatus = errors.New("inspect: unknown status")
