package engine

import "errors"

// Errors returned by engine operations.
var (
	// ErrRunning is returned by Start when a run is already in progress.
	// The call has no effect in that case.
	ErrRunning = errors.New("engine is already running")

	// ErrNilSink indicates the engine was constructed without an input sink.
	ErrNilSink = errors.New("input sink is required")

	// ErrNilMacro is returned by Start when given a nil macro.
	ErrNilMacro = errors.New("macro is nil")
)
