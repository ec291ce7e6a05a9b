package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/hosterrors"
	"github.com/conecheck/conecheck/pkg/httpclient"
	"github.com/conecheck/conecheck/pkg/inspect"
	"github.com/conecheck/conecheck/pkg/logger"
	"github.com/conecheck/conecheck/pkg/validate"
	"github.com/conecheck/conecheck/pkg/vos"
)

// exitError carries the process exit code chosen by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func usageError(format string, args ...any) error {
	return withExit(defaults.ExitUserError, fmt.Errorf(format, args...))
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, logger.ErrUnknownLevel),
		errors.Is(err, logger.ErrUnknownFormat),
		errors.Is(err, inspect.ErrUnknownStatus),
		errors.Is(err, vos.ErrBadPattern),
		errors.Is(err, vos.ErrCatalogNotFound),
		errors.Is(err, vos.ErrFileExists),
		errors.Is(err, vos.ErrDuplicateCatalog),
		errors.Is(err, vos.ErrDuplicateURL),
		errors.Is(err, vos.ErrInvalidDatabase),
		errors.Is(err, validate.ErrNoServices),
		errors.Is(err, fs.ErrNotExist):
		return defaults.ExitUserError
	case errors.Is(err, validate.ErrRegistry),
		errors.Is(err, httpclient.ErrHTTPStatus),
		hosterrors.IsNetworkError(err):
		return defaults.ExitNetworkError
	default:
		return defaults.ExitInternalError
	}
}
