package runner

import "errors"

// ErrTaskPanic wraps the value recovered from a panicking task.
var ErrTaskPanic = errors.New("runner: task panicked")
