// Package recorder converts live device events into a macro action
// sequence. It listens to the shared input tap, synthesizes wait actions
// for the gaps between events, and post-processes the buffer into a
// compact sequence when recording stops.
package recorder

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/input/tap"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
)

// ErrNilSource indicates the recorder was built without an event source.
var ErrNilSource = errors.New("event source is required")

// DefaultNoiseFloor is the shortest gap between events worth representing
// as a wait action. Empirical tuning value, overridable through Options.
const DefaultNoiseFloor = 80 * time.Millisecond

// ScrollScale multiplies raw wheel ticks into scroll amounts.
const ScrollScale = 3

// reservedKeys are transport-control keys excluded from capture.
var reservedKeys = map[string]bool{
	"f7": true, "f8": true, "f9": true,
	"f10": true, "f11": true, "f12": true,
}

// Options configure a Recorder. Source is required.
type Options struct {
	Source      tap.Source
	Logger      *slog.Logger
	NoiseFloor  time.Duration
	EventBuffer int

	// Clock stamps the start of recording; event gaps come from the tap's
	// own timestamps. Tests inject a fixed clock.
	Clock func() time.Time
}

// Recorder captures device events into actions. Safe for concurrent use:
// the tap consumer goroutine appends while other goroutines may call
// Stop or inspect state.
type Recorder struct {
	source tap.Source
	log    *slog.Logger
	floor  time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	recording bool
	actions   []macro.Action
	last      time.Time
	sub       *tap.Subscription
	done      chan struct{}

	recorded chan macro.Action
	dropped  atomic.Uint64
}

// New builds a recorder from options.
func New(opts Options) (*Recorder, error) {
	if opts.Source == nil {
		return nil, ErrNilSource
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NoiseFloor <= 0 {
		opts.NoiseFloor = DefaultNoiseFloor
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 128
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Recorder{
		source:   opts.Source,
		log:      opts.Logger,
		floor:    opts.NoiseFloor,
		clock:    opts.Clock,
		recorded: make(chan macro.Action, opts.EventBuffer),
	}, nil
}

// IsRecording reports whether a capture is in progress.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Recorded streams each captured action as it is appended. Never closed;
// one consumer should drain it for the life of the recorder.
func (r *Recorder) Recorded() <-chan macro.Action {
	return r.recorded
}

// Start begins capturing. Starting an active recorder is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return
	}
	r.recording = true
	r.actions = nil
	r.last = r.clock()
	r.sub = r.source.Subscribe(0)
	r.done = make(chan struct{})
	go r.consume(r.sub, r.done)
	r.log.Info("recording started")
}

// Stop halts capture and returns the post-processed action sequence:
// consecutive waits merged, sub-floor waits dropped, everything else in
// original order. Stopping an inactive recorder returns nil.
func (r *Recorder) Stop() []macro.Action {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	sub, done := r.sub, r.done
	r.sub, r.done = nil, nil
	r.mu.Unlock()

	sub.Cancel()
	<-done

	r.mu.Lock()
	raw := r.actions
	r.actions = nil
	r.mu.Unlock()

	actions := mergeWaits(raw, r.floor)
	r.log.Info("recording stopped", "raw", len(raw), "actions", len(actions))
	return actions
}

// consume drains tap events until the subscription is cancelled.
func (r *Recorder) consume(sub *tap.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C {
		switch ev.Kind {
		case tap.MouseDown:
			r.addWait(ev.When)
			a := macro.NewAction(macro.KindMouseClick)
			a.Button = ev.Button
			a.SetTarget(ev.X, ev.Y)
			a.DelayAfterMS = 0
			r.append(a)

		case tap.MouseWheel:
			r.addWait(ev.When)
			a := macro.NewAction(macro.KindMouseScroll)
			a.ScrollAmount = ev.Rotation * ScrollScale
			a.DelayAfterMS = 0
			r.append(a)

		case tap.KeyDown:
			if ev.Key == "" || reservedKeys[ev.Key] {
				continue
			}
			r.addWait(ev.When)
			a := macro.NewAction(macro.KindKeyPress)
			a.Key = ev.Key
			a.DelayAfterMS = 0
			r.append(a)
		}
	}
}

// addWait inserts a wait action covering the gap since the previous
// captured event, when the gap clears the noise floor.
func (r *Recorder) addWait(now time.Time) {
	r.mu.Lock()
	elapsed := now.Sub(r.last)
	r.last = now
	r.mu.Unlock()

	if elapsed <= r.floor {
		return
	}
	a := macro.NewAction(macro.KindWait)
	a.DurationMS = int(elapsed / time.Millisecond)
	a.DelayAfterMS = 0
	r.append(a)
}

func (r *Recorder) append(a macro.Action) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.actions = append(r.actions, a)
	r.mu.Unlock()

	select {
	case r.recorded <- a:
	default:
		r.dropped.Add(1)
	}
}

// mergeWaits coalesces runs of consecutive wait actions into one wait with
// the summed duration, dropping the merged wait entirely when the total is
// at or below the floor. Non-wait actions pass through in order.
func mergeWaits(actions []macro.Action, floor time.Duration) []macro.Action {
	floorMS := int(floor / time.Millisecond)
	out := make([]macro.Action, 0, len(actions))

	for i := 0; i < len(actions); i++ {
		a := actions[i]
		if a.Type != macro.KindWait {
			out = append(out, a)
			continue
		}
		total := a.DurationMS
		for i+1 < len(actions) && actions[i+1].Type == macro.KindWait {
			i++
			total += actions[i].DurationMS
		}
		if total > floorMS {
			merged := macro.NewAction(macro.KindWait)
			merged.DurationMS = total
			merged.DelayAfterMS = 0
			out = append(out, merged)
		}
	}
	return out
}
