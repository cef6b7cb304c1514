package tap

import (
	"sort"
	"strings"
	"unicode"

	hook "github.com/robotn/gohook"
)

// keycodeNames inverts the hook keycode table. Where several aliases map
// to one code ("esc"/"escape", "enter"/"return") the shortest name wins,
// then lexicographic order, so the result is deterministic and matches
// the names robotgo accepts for synthesis.
var keycodeNames = func() map[uint16]string {
	names := make([]string, 0, len(hook.Keycode))
	for name := range hook.Keycode {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	m := make(map[uint16]string, len(names))
	for _, name := range names {
		code := hook.Keycode[name]
		if _, ok := m[code]; !ok {
			m[code] = name
		}
	}
	return m
}()

// buttonNames inverts the hook mouse button table, renaming robotgo's
// "center" to the conventional "middle".
var buttonNames = func() map[uint16]string {
	m := make(map[uint16]string, len(hook.MouseMap))
	for name, code := range hook.MouseMap {
		if name == "center" {
			name = "middle"
		}
		if _, ok := m[code]; !ok {
			m[code] = name
		}
	}
	return m
}()

// KeyName returns the canonical lowercase name for a key event: printable
// keys by their character, named keys by their hook table name. Returns
// "" when the key cannot be resolved.
func KeyName(raw hook.Event) string {
	if raw.Keychar == ' ' {
		return "space"
	}
	if raw.Keychar != 0 && raw.Keychar != 0xFFFF && unicode.IsGraphic(raw.Keychar) {
		return strings.ToLower(string(raw.Keychar))
	}
	if name, ok := keycodeNames[raw.Keycode]; ok {
		return name
	}
	return ""
}

func buttonName(code uint16) string {
	if name, ok := buttonNames[code]; ok {
		return name
	}
	return "left"
}
