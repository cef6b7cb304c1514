package macro

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the variant of an Action. The set is closed: dispatch
// sites switch exhaustively and treat anything else as ErrUnknownKind.
type Kind uint8

const (
	// KindNone is the zero value and never valid in a stored action.
	KindNone Kind = iota

	// KindMouseClick presses and releases a pointer button, optionally
	// after moving to a target coordinate.
	KindMouseClick

	// KindMouseMove moves the pointer to a target coordinate.
	KindMouseMove

	// KindMouseScroll scrolls vertically by a signed amount.
	KindMouseScroll

	// KindKeyPress taps a key (press, short hold, release).
	KindKeyPress

	// KindKeyHold presses a key, holds it for a duration, then releases.
	KindKeyHold

	// KindWait sleeps for a duration.
	KindWait

	// KindTypeText sends a literal text payload character by character.
	KindTypeText

	// KindImageWait blocks until a template image appears on screen or a
	// timeout elapses.
	KindImageWait

	// KindImageClick is KindImageWait plus a click at the match center.
	KindImageClick
)

// kindNames maps kinds to their wire names. The wire names are the data
// contract shared with the editor and the share-code format.
var kindNames = map[Kind]string{
	KindMouseClick:  "mouse_click",
	KindMouseMove:   "mouse_move",
	KindMouseScroll: "mouse_scroll",
	KindKeyPress:    "key_press",
	KindKeyHold:     "key_hold",
	KindWait:        "wait",
	KindTypeText:    "type_text",
	KindImageWait:   "image_wait",
	KindImageClick:  "image_click",
}

var kindValues = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the wire name of the kind, or "unknown" for values
// outside the closed set.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether the kind belongs to the closed set.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// MarshalText encodes the kind as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	return []byte(n), nil
}

// UnmarshalText decodes a wire name into a kind.
func (k *Kind) UnmarshalText(text []byte) error {
	v, ok := kindValues[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, text)
	}
	*k = v
	return nil
}

// Confidence and timing defaults applied to actions that do not set the
// corresponding field. The values match the established data contract.
const (
	DefaultConfidence = 0.85
	DefaultCVTimeout  = 30000 // ms
	DefaultDelayAfter = 100   // ms
)

// Confidence thresholds outside this range are clamped by convention
// rather than rejected.
const (
	MinConfidence = 0.5
	MaxConfidence = 1.0
)

// Action is one atomic macro step. Only the fields relevant to the Kind
// are meaningful; the rest stay at their defaults. X and Y are pointers so
// that "no target" is distinguishable from coordinate zero.
type Action struct {
	Type         Kind    `json:"type"`
	ID           string  `json:"id"`
	Button       string  `json:"button"`
	X            *int    `json:"x,omitempty"`
	Y            *int    `json:"y,omitempty"`
	Clicks       int     `json:"clicks"`
	ScrollAmount int     `json:"scroll_amount"`
	Key          string  `json:"key,omitempty"`
	DurationMS   int     `json:"duration_ms"`
	Text         string  `json:"text,omitempty"`
	TemplatePath string  `json:"template_path,omitempty"`
	TemplateB64  string  `json:"template_b64,omitempty"`
	Confidence   float64 `json:"cv_confidence"`
	CVTimeoutMS  int     `json:"cv_timeout_ms"`
	DelayAfterMS int     `json:"delay_after_ms"`
	Humanize     *bool   `json:"humanize,omitempty"`
}

// NewAction returns an action of the given kind with defaults applied and
// a fresh ID.
func NewAction(kind Kind) Action {
	a := defaultAction()
	a.Type = kind
	return a
}

func defaultAction() Action {
	return Action{
		ID:           uuid.NewString(),
		Button:       "left",
		Clicks:       1,
		ScrollAmount: 3,
		Confidence:   DefaultConfidence,
		CVTimeoutMS:  DefaultCVTimeout,
		DelayAfterMS: DefaultDelayAfter,
	}
}

// UnmarshalJSON decodes an action record, applying defaults for every
// omitted field so that absent and explicit-zero values stay distinct.
func (a *Action) UnmarshalJSON(data []byte) error {
	type plain Action
	tmp := plain(defaultAction())
	tmp.ID = "" // a stored record carries its own ID; regenerate only if missing
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.ID == "" {
		tmp.ID = uuid.NewString()
	}
	*a = Action(tmp)
	return nil
}

// Target returns the pointer target, if one is set.
func (a Action) Target() (x, y int, ok bool) {
	if a.X == nil || a.Y == nil {
		return 0, 0, false
	}
	return *a.X, *a.Y, true
}

// SetTarget sets both coordinates of the pointer target.
func (a *Action) SetTarget(x, y int) {
	a.X = &x
	a.Y = &y
}

// ClampedConfidence returns the similarity threshold clamped to the
// practically useful range.
func (a Action) ClampedConfidence() float64 {
	switch {
	case a.Confidence < MinConfidence:
		return MinConfidence
	case a.Confidence > MaxConfidence:
		return MaxConfidence
	default:
		return a.Confidence
	}
}

// Validate checks the per-action invariants.
func (a Action) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, a.Type)
	}
	switch a.Type {
	case KindMouseClick, KindMouseMove:
		if (a.X == nil) != (a.Y == nil) {
			return ErrHalfCoordinate
		}
		if a.Type == KindMouseClick && a.Clicks < 1 {
			return ErrBadClickCount
		}
	}
	if a.DelayAfterMS < 0 {
		return fmt.Errorf("negative delay_after_ms: %d", a.DelayAfterMS)
	}
	return nil
}

// Label renders a short human-readable description of the action, used by
// listings and progress output.
func (a Action) Label() string {
	switch a.Type {
	case KindMouseClick:
		s := fmt.Sprintf("click %s", a.Button)
		if x, y, ok := a.Target(); ok {
			s += fmt.Sprintf(" @(%d,%d)", x, y)
		}
		if a.Clicks > 1 {
			s += fmt.Sprintf(" x%d", a.Clicks)
		}
		return s
	case KindMouseMove:
		if x, y, ok := a.Target(); ok {
			return fmt.Sprintf("move to (%d,%d)", x, y)
		}
		return "move (no target)"
	case KindMouseScroll:
		dir := "up"
		if a.ScrollAmount < 0 {
			dir = "down"
		}
		return fmt.Sprintf("scroll %s x%d", dir, abs(a.ScrollAmount))
	case KindKeyPress:
		return fmt.Sprintf("press [%s]", a.Key)
	case KindKeyHold:
		return fmt.Sprintf("hold [%s] %dms", a.Key, a.DurationMS)
	case KindWait:
		return fmt.Sprintf("wait %dms", a.DurationMS)
	case KindTypeText:
		text := a.Text
		if len(text) > 18 {
			text = text[:18] + "..."
		}
		return fmt.Sprintf("type %q", text)
	case KindImageWait:
		return fmt.Sprintf("wait for image (%d%%)", int(a.ClampedConfidence()*100))
	case KindImageClick:
		return fmt.Sprintf("click on image (%d%%)", int(a.ClampedConfidence()*100))
	default:
		return "unknown"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
