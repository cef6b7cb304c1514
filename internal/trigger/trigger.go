// Package trigger maps global key presses to transport control callbacks
// (start, stop, record), independent of which window has focus.
package trigger

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/GregAuRizzz/generic-macro-app/internal/input/tap"
)

// Config binds three single keys to three callbacks. Keys are canonical
// lowercase names ("f8", "a"); chords and modifier combinations are not
// supported. Bindings may share a key, in which case every matching
// callback fires for that press.
type Config struct {
	StartKey  string
	StopKey   string
	RecordKey string

	OnStart  func()
	OnStop   func()
	OnRecord func()
}

// Listener consumes the global key stream and invokes the configured
// callbacks on its own goroutine, serially. Each callback invocation is
// isolated: a panic is logged and never reaches the listener loop or the
// other callbacks.
type Listener struct {
	source tap.Source
	log    *slog.Logger

	mu     sync.Mutex
	cfg    Config
	active bool
	sub    *tap.Subscription
	done   chan struct{}
}

// New returns an unconfigured, inactive listener over the given source.
func New(source tap.Source, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{source: source, log: logger}
}

// Configure replaces the key bindings. Safe at any time, including while
// the listener is active; reconfiguring is idempotent.
func (l *Listener) Configure(cfg Config) {
	cfg.StartKey = strings.ToLower(strings.TrimSpace(cfg.StartKey))
	cfg.StopKey = strings.ToLower(strings.TrimSpace(cfg.StopKey))
	cfg.RecordKey = strings.ToLower(strings.TrimSpace(cfg.RecordKey))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// IsActive reports whether the listener is consuming key events.
func (l *Listener) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Start begins listening. Starting an active listener is a no-op.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return
	}
	l.active = true
	l.sub = l.source.Subscribe(0)
	l.done = make(chan struct{})
	go l.consume(l.sub, l.done)
}

// Stop halts listening and waits for the consumer goroutine to exit.
// Stopping an inactive listener is a no-op.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.active = false
	sub, done := l.sub, l.done
	l.sub, l.done = nil, nil
	l.mu.Unlock()

	sub.Cancel()
	<-done
}

func (l *Listener) consume(sub *tap.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C {
		if ev.Kind != tap.KeyDown || ev.Key == "" {
			continue
		}
		l.dispatch(ev.Key)
	}
}

// dispatch fires every callback whose key matches, serially. Keys arrive
// already canonical from the tap.
func (l *Listener) dispatch(key string) {
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()

	if key == cfg.StartKey && cfg.OnStart != nil {
		l.safeCall("start", cfg.OnStart)
	}
	if key == cfg.StopKey && cfg.OnStop != nil {
		l.safeCall("stop", cfg.OnStop)
	}
	if key == cfg.RecordKey && cfg.OnRecord != nil {
		l.safeCall("record", cfg.OnRecord)
	}
}

func (l *Listener) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("hotkey callback panicked", "hotkey", name, "panic", r)
		}
	}()
	fn()
}
