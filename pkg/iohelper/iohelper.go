// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading HTTP response bodies with limits.
package iohelper

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge is returned by ReadBodyStrict when the reader holds more
// than the allowed number of bytes.
var ErrBodyTooLarge = errors.New("iohelper: body exceeds size limit")

// Standard body size limits for different use cases
const (
	// SmallMaxBodySize is for error pages and status responses (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for a single cone search response (32MB)
	DefaultMaxBodySize int64 = 32 * 1024 * 1024

	// drainLimit bounds how much DrainAndClose reads before giving up on reuse.
	drainLimit int64 = 64 * 1024
)

// ReadBody reads from an io.Reader with a size limit, silently truncating.
// If r is nil, returns empty slice and no error.
//
// Usage:
//
//	body, err := iohelper.ReadBody(resp.Body, iohelper.SmallMaxBodySize)
//	defer resp.Body.Close()
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyStrict is ReadBody that fails instead of truncating. A truncated
// VOTable would otherwise be reported as a parse error of the service.
func ReadBodyStrict(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > maxSize {
		return data[:maxSize], fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxSize)
	}
	return data, nil
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(r, drainLimit))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
