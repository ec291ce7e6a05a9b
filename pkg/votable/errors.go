package votable

import "errors"

var (
	// ErrNotVOTable means the root element is missing or is not VOTABLE.
	ErrNotVOTable = errors.New("votable: document is not a VOTABLE")

	// ErrMalformed wraps XML syntax errors; the document is incomplete.
	ErrMalformed = errors.New("votable: malformed XML")
)
