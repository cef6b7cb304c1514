// Package tap exposes the global OS input hook as a fan-out event stream.
//
// The underlying hook (gohook) is a process-wide singleton: only one
// consumer may drain it. The tap owns that stream and re-broadcasts
// translated events to any number of subscribers, so the recorder and the
// trigger listener can listen independently, each on its own channel.
package tap

import (
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// Kind classifies a device event.
type Kind uint8

const (
	// KeyDown is a keyboard key press.
	KeyDown Kind = iota + 1
	// MouseDown is a pointer button press.
	MouseDown
	// MouseWheel is a scroll wheel tick.
	MouseWheel
)

// Event is a translated device event. Key and Button carry canonical
// lowercase names so consumers never touch raw keycodes.
type Event struct {
	Kind     Kind
	When     time.Time
	Key      string // KeyDown: canonical key name ("a", "enter", "f8")
	Button   string // MouseDown: "left", "right" or "middle"
	X, Y     int
	Rotation int // MouseWheel: signed tick count
}

// Source is the subscription surface consumers depend on. The concrete
// Tap implements it; tests substitute a scripted source.
type Source interface {
	Subscribe(buffer int) *Subscription
}

// Subscription is one subscriber's view of the stream. Cancel detaches it
// and closes C.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

// NewSubscription wraps an existing channel as a subscription, for event
// sources other than the system tap (fan-in adapters, test doubles).
// Cancel runs the given teardown exactly once.
func NewSubscription(c <-chan Event, cancel func()) *Subscription {
	var once sync.Once
	return &Subscription{
		C: c,
		cancel: func() {
			once.Do(cancel)
		},
	}
}

// Tap pumps the global hook stream to subscribers. Events a slow
// subscriber cannot accept are dropped rather than stalling the pump.
type Tap struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	running bool
	quit    chan struct{}
	done    chan struct{}

	// Hook entry points, swappable in tests.
	hookStart func() chan hook.Event
	hookEnd   func()
}

// New returns a tap over the process-wide input hook.
func New() *Tap {
	return &Tap{
		subs:      make(map[int]chan Event),
		hookStart: hook.Start,
		hookEnd:   hook.End,
	}
}

// Start begins pumping hook events. Starting a running tap is a no-op.
func (t *Tap) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.quit = make(chan struct{})
	t.done = make(chan struct{})

	events := t.hookStart()
	go t.pump(events, t.quit, t.done)
}

// Stop tears down the hook and waits for the pump to exit. Stopping a
// stopped tap is a no-op.
func (t *Tap) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	quit, done := t.quit, t.done
	t.mu.Unlock()

	close(quit)
	t.hookEnd()
	<-done
}

// Subscribe registers a new subscriber with the given channel buffer.
func (t *Tap) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return &Subscription{
		C: ch,
		cancel: func() {
			once.Do(func() {
				t.mu.Lock()
				delete(t.subs, id)
				t.mu.Unlock()
				close(ch)
			})
		},
	}
}

func (t *Tap) pump(events chan hook.Event, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			ev, ok := translate(raw)
			if !ok {
				continue
			}
			t.broadcast(ev)
		}
	}
}

func (t *Tap) broadcast(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default: // subscriber is behind; drop rather than stall the pump
		}
	}
}

// translate converts a raw hook event into the tap's event type. Events
// other than key-down, mouse-down and wheel are ignored.
func translate(raw hook.Event) (Event, bool) {
	switch raw.Kind {
	case hook.KeyDown, hook.KeyHold:
		name := KeyName(raw)
		if name == "" {
			return Event{}, false
		}
		return Event{Kind: KeyDown, When: time.Now(), Key: name}, true
	case hook.MouseDown:
		return Event{
			Kind:   MouseDown,
			When:   time.Now(),
			Button: buttonName(raw.Button),
			X:      int(raw.X),
			Y:      int(raw.Y),
		}, true
	case hook.MouseWheel:
		return Event{
			Kind:     MouseWheel,
			When:     time.Now(),
			X:        int(raw.X),
			Y:        int(raw.Y),
			Rotation: int(raw.Rotation),
		}, true
	default:
		return Event{}, false
	}
}
