package trigger

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/input/tap"
)

type fakeSource struct {
	ch chan tap.Event
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan tap.Event, 16)}
}

func (f *fakeSource) Subscribe(int) *tap.Subscription {
	return tap.NewSubscription(f.ch, func() { close(f.ch) })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func press(src *fakeSource, key string) {
	src.ch <- tap.Event{Kind: tap.KeyDown, Key: key, When: time.Now()}
}

func waitFor(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("counter = %d, want %d", counter.Load(), want)
}

func TestListenerDispatch(t *testing.T) {
	src := newFakeSource()
	l := New(src, discardLogger())

	var starts, stops, records atomic.Int32
	l.Configure(Config{
		StartKey:  "F8", // normalized to lowercase
		StopKey:   "f9",
		RecordKey: "f7",
		OnStart:   func() { starts.Add(1) },
		OnStop:    func() { stops.Add(1) },
		OnRecord:  func() { records.Add(1) },
	})

	l.Start()
	defer l.Stop()

	press(src, "f8")
	press(src, "f9")
	press(src, "f9")
	press(src, "f7")
	press(src, "q") // unbound

	waitFor(t, &starts, 1)
	waitFor(t, &stops, 2)
	waitFor(t, &records, 1)
}

func TestListenerSharedKeyFiresAll(t *testing.T) {
	src := newFakeSource()
	l := New(src, discardLogger())

	var starts, stops atomic.Int32
	l.Configure(Config{
		StartKey: "f5",
		StopKey:  "f5",
		OnStart:  func() { starts.Add(1) },
		OnStop:   func() { stops.Add(1) },
	})

	l.Start()
	defer l.Stop()

	press(src, "f5")

	waitFor(t, &starts, 1)
	waitFor(t, &stops, 1)
}

func TestListenerCallbackPanicIsolated(t *testing.T) {
	src := newFakeSource()
	l := New(src, discardLogger())

	var stops atomic.Int32
	l.Configure(Config{
		StartKey: "f5",
		StopKey:  "f5",
		OnStart:  func() { panic("boom") },
		OnStop:   func() { stops.Add(1) },
	})

	l.Start()
	defer l.Stop()

	press(src, "f5")
	press(src, "f5")

	// The panicking start callback never blocks the stop callback, and
	// the listener survives to handle the second press.
	waitFor(t, &stops, 2)
}

func TestListenerStartStopIdempotent(t *testing.T) {
	src := newFakeSource()
	l := New(src, discardLogger())
	l.Configure(Config{StartKey: "f8"})

	if l.IsActive() {
		t.Fatal("active before Start")
	}
	l.Start()
	l.Start() // no-op
	if !l.IsActive() {
		t.Fatal("not active after Start")
	}
	l.Stop()
	l.Stop() // no-op
	if l.IsActive() {
		t.Fatal("active after Stop")
	}
}

func TestListenerReconfigureWhileActive(t *testing.T) {
	src := newFakeSource()
	l := New(src, discardLogger())

	var count atomic.Int32
	l.Configure(Config{StartKey: "f8", OnStart: func() { count.Add(1) }})
	l.Start()
	defer l.Stop()

	press(src, "f8")
	waitFor(t, &count, 1)

	l.Configure(Config{StartKey: "f2", OnStart: func() { count.Add(1) }})
	press(src, "f8") // old binding no longer fires
	press(src, "f2")
	waitFor(t, &count, 2)
}
