package sink

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"
)

// robotgo names the middle button "center".
var robotButtons = map[string]string{
	"left":   "left",
	"right":  "right",
	"middle": "center",
}

// Robot drives the real OS input APIs through robotgo. A mutex serializes
// device commands so the engine worker and the anti-AFK loop never issue
// overlapping calls.
type Robot struct {
	mu sync.Mutex
}

// NewRobot returns a robotgo-backed sink.
func NewRobot() *Robot {
	return &Robot{}
}

// Location returns the current pointer position.
func (r *Robot) Location() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return robotgo.Location()
}

// Move places the pointer at an absolute position.
func (r *Robot) Move(x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.Move(x, y)
}

// MoveRelative nudges the pointer by a delta.
func (r *Robot) MoveRelative(dx, dy int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.MoveRelative(dx, dy)
}

// Toggle presses or releases a pointer button.
func (r *Robot) Toggle(button string, down bool) error {
	name, ok := robotButtons[button]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownButton, button)
	}
	state := "down"
	if !down {
		state = "up"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.Toggle(name, state); err != nil {
		return fmt.Errorf("toggling %s %s: %w", button, state, err)
	}
	return nil
}

// Scroll scrolls vertically by a signed amount.
func (r *Robot) Scroll(amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.Scroll(0, amount)
}

// KeyToggle presses or releases a named key.
func (r *Robot) KeyToggle(key string, down bool) error {
	state := "down"
	if !down {
		state = "up"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.KeyToggle(key, state); err != nil {
		return fmt.Errorf("toggling key %q %s: %w", key, state, err)
	}
	return nil
}

// TypeText sends a literal string.
func (r *Robot) TypeText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.TypeStr(text)
}
