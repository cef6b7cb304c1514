// Package engine executes macros against an input sink.
//
// One Engine owns at most one run at a time. Start spawns a dedicated
// worker goroutine that owns all timing for the run; Stop cancels the
// run's context and returns immediately, with the worker winding down and
// reporting completion through the event channel. Cancellation is
// cooperative: every sleep and every interpolation step re-checks the
// context, so a stop takes effect within one step or timer wakeup, while
// an in-flight device command always completes.
//
// Progress and lifecycle are reported on a single-consumer buffered event
// channel rather than caller-supplied callbacks; subscribers drain events
// on their own schedule. Emission never blocks the worker: events a slow
// consumer cannot accept are counted and dropped.
//
// Humanization perturbs timing and pointer paths with an intensity in
// [0,1]: post-action delays gain proportional jitter, pointer targets gain
// a few units of scatter, and interpolated moves gain a sinusoidal lateral
// wobble.
package engine
