package macro

import (
	"encoding/json"
	"fmt"
)

// Policy defaults for a freshly created macro.
const (
	DefaultHotkeyStart     = "f8"
	DefaultHotkeyStop      = "f9"
	DefaultHotkeyRecord    = "f7"
	DefaultAntiAFKInterval = 900 // seconds
)

// Macro is an ordered list of actions plus the execution-wide policy.
// LoopCount zero means loop forever (when Loop is set). HumanizeLevel is
// an intensity in [0,1] scaling timing jitter and pointer wobble.
type Macro struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Game            string   `json:"game"`
	Loop            bool     `json:"loop"`
	LoopCount       int      `json:"loop_count"`
	HotkeyStart     string   `json:"hotkey_start"`
	HotkeyStop      string   `json:"hotkey_stop"`
	HotkeyRecord    string   `json:"hotkey_record"`
	HumanizeLevel   float64  `json:"humanize_level"`
	AntiAFK         bool     `json:"anti_afk"`
	AntiAFKInterval int      `json:"anti_afk_interval_s"`
	Actions         []Action `json:"actions"`
	Author          string   `json:"author"`
	Tags            []string `json:"tags"`
}

// New returns a macro with policy defaults and no actions.
func New(name string) *Macro {
	return &Macro{
		Name:            name,
		Game:            "Generic",
		HotkeyStart:     DefaultHotkeyStart,
		HotkeyStop:      DefaultHotkeyStop,
		HotkeyRecord:    DefaultHotkeyRecord,
		AntiAFKInterval: DefaultAntiAFKInterval,
	}
}

// UnmarshalJSON decodes a macro record, applying policy defaults for
// omitted fields.
func (m *Macro) UnmarshalJSON(data []byte) error {
	type plain Macro
	tmp := plain(*New("New Macro"))
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*m = Macro(tmp)
	return nil
}

// MarshalJSON encodes the macro record. Nil action and tag slices encode
// as empty arrays, never null.
func (m Macro) MarshalJSON() ([]byte, error) {
	type plain Macro
	tmp := plain(m)
	if tmp.Actions == nil {
		tmp.Actions = []Action{}
	}
	if tmp.Tags == nil {
		tmp.Tags = []string{}
	}
	return json.Marshal(tmp)
}

// Validate checks every action and the macro-level policy.
func (m *Macro) Validate() error {
	if m.HumanizeLevel < 0 || m.HumanizeLevel > 1 {
		return fmt.Errorf("humanize_level %v outside [0,1]", m.HumanizeLevel)
	}
	if m.LoopCount < 0 {
		return fmt.Errorf("negative loop_count: %d", m.LoopCount)
	}
	for i, a := range m.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the macro. Edits to the copy never alias
// into a macro handed to a running engine.
func (m *Macro) Clone() *Macro {
	out := *m
	out.Actions = make([]Action, len(m.Actions))
	copy(out.Actions, m.Actions)
	for i := range out.Actions {
		if m.Actions[i].X != nil {
			x := *m.Actions[i].X
			out.Actions[i].X = &x
		}
		if m.Actions[i].Y != nil {
			y := *m.Actions[i].Y
			out.Actions[i].Y = &y
		}
		if m.Actions[i].Humanize != nil {
			h := *m.Actions[i].Humanize
			out.Actions[i].Humanize = &h
		}
	}
	out.Tags = append([]string(nil), m.Tags...)
	return &out
}

// ToJSON renders the macro as indented JSON for on-disk storage.
func (m *Macro) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON parses a macro from JSON.
func FromJSON(data []byte) (*Macro, error) {
	var m Macro
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing macro: %w", err)
	}
	return &m, nil
}
