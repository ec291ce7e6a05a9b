package logger

import "errors"

var (
	// ErrUnknownLevel is returned for level names ParseLevel does not know.
	ErrUnknownLevel = errors.New("logger: unknown level")

	// ErrUnknownFormat is returned for output formats other than auto, text or json.
	ErrUnknownFormat = errors.New("logger: unknown format")
)
