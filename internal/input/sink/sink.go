// Package sink abstracts the OS input synthesis surface. It is the only
// package that issues pointer or keyboard commands, which keeps the engine
// and the anti-AFK loop testable against a scripted fake.
package sink

import "errors"

// ErrUnknownButton is returned for button names outside left/right/middle.
var ErrUnknownButton = errors.New("unknown pointer button")

// Sink issues synthetic input to the operating system. Implementations
// must be safe for serialized use from multiple goroutines; the engine
// worker and the anti-AFK loop share one Sink.
type Sink interface {
	// Location returns the current pointer position.
	Location() (x, y int)

	// Move places the pointer at an absolute position.
	Move(x, y int)

	// MoveRelative nudges the pointer by a delta from its current position.
	MoveRelative(dx, dy int)

	// Toggle presses (down=true) or releases a pointer button. Button is
	// one of "left", "right", "middle".
	Toggle(button string, down bool) error

	// Scroll scrolls vertically by a signed amount; the sign encodes the
	// direction.
	Scroll(amount int)

	// KeyToggle presses or releases a named key ("a", "enter", "f8", ...).
	KeyToggle(key string, down bool) error

	// TypeText sends a literal string character by character.
	TypeText(text string)
}
