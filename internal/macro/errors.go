package macro

import "errors"

// Sentinel errors for the macro data model.
var (
	// ErrUnknownKind is returned when an action carries a kind outside the
	// closed set.
	ErrUnknownKind = errors.New("unknown action kind")

	// ErrHalfCoordinate is returned when exactly one of x/y is set on a
	// pointer action. Pointer targets are all-or-nothing.
	ErrHalfCoordinate = errors.New("pointer target must set both x and y or neither")

	// ErrBadClickCount is returned when a click action has a repeat count
	// below one.
	ErrBadClickCount = errors.New("click count must be at least 1")

	// ErrBadShareCode is returned when a share code cannot be decoded.
	ErrBadShareCode = errors.New("malformed share code")
)
