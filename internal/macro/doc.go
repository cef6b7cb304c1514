// Package macro defines the action and macro data model shared by the
// playback engine, the recorder, and the storage layer.
//
// # Concepts
//
// An Action is one atomic step of a macro: a pointer click or move, a
// scroll, a key press or hold, a wait, literal text entry, or an
// image-gated wait/click. A Macro is an ordered list of actions plus the
// execution policy that applies to a whole run: looping, humanization
// intensity, and the anti-AFK keepalive.
//
// # Ownership
//
// A Macro is owned by whoever built it. The engine only ever holds a read
// reference for the duration of one run and the recorder always builds a
// fresh value, so a Macro is never mutated while playback is active. Edits
// produce a new value.
//
// # Encoding
//
// Actions serialize as flat JSON records. Fields holding the "absent"
// value are omitted entirely rather than encoded as null. Macros also
// round-trip through a compact share code: compact JSON, zlib-compressed,
// URL-safe base64 without padding, prefixed with "GMAC-".
package macro
