package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
)

// fakeSink records every device command it receives.
type fakeSink struct {
	mu     sync.Mutex
	ops    []string
	x, y   int
	keyErr error // returned by KeyToggle when set
}

func (f *fakeSink) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeSink) Location() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

func (f *fakeSink) Move(x, y int) {
	f.mu.Lock()
	f.x, f.y = x, y
	f.mu.Unlock()
	f.record(fmt.Sprintf("move %d,%d", x, y))
}

func (f *fakeSink) MoveRelative(dx, dy int) {
	f.mu.Lock()
	f.x += dx
	f.y += dy
	f.mu.Unlock()
	f.record(fmt.Sprintf("moverel %d,%d", dx, dy))
}

func (f *fakeSink) Toggle(button string, down bool) error {
	f.record(fmt.Sprintf("toggle %s %v", button, down))
	return nil
}

func (f *fakeSink) Scroll(amount int) {
	f.record(fmt.Sprintf("scroll %d", amount))
}

func (f *fakeSink) KeyToggle(key string, down bool) error {
	if f.keyErr != nil {
		return f.keyErr
	}
	f.record(fmt.Sprintf("key %s %v", key, down))
	return nil
}

func (f *fakeSink) TypeText(text string) {
	f.record("type " + text)
}

func (f *fakeSink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// fakeMatcher scripts match results.
type fakeMatcher struct {
	score  float64
	center image.Point
}

func (f *fakeMatcher) Match(image.Image) (image.Point, float64, error) {
	return f.center, f.score, nil
}

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Rand == nil {
		opts.Rand = func() float64 { return 0.5 } // zero jitter, zero wobble
	}
	if opts.StepSleep == 0 {
		opts.StepSleep = time.Millisecond
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// drainUntilStopped collects events until EventStopped arrives.
func drainUntilStopped(t *testing.T, e *Engine) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			got = append(got, ev)
			if ev.Kind == EventStopped {
				return got
			}
		case <-deadline:
			t.Fatalf("no EventStopped; got %v", got)
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func quickAction(kind macro.Kind) macro.Action {
	a := macro.NewAction(kind)
	a.DelayAfterMS = 0
	return a
}

func TestEngineRunsActionsInOrder(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("run")
	key := quickAction(macro.KindKeyPress)
	key.Key = "a"
	scroll := quickAction(macro.KindMouseScroll)
	scroll.ScrollAmount = 5
	text := quickAction(macro.KindTypeText)
	text.Text = "hi"
	m.Actions = []macro.Action{key, scroll, text}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	want := []string{"key a true", "key a false", "scroll 5", "type hi"}
	got := s.snapshot()
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if countKind(events, EventStarted) != 1 || countKind(events, EventLoop) != 1 {
		t.Errorf("lifecycle events wrong: %v", events)
	}
	if countKind(events, EventAction) != 3 {
		t.Errorf("got %d action events, want 3", countKind(events, EventAction))
	}
	if e.IsRunning() {
		t.Error("engine still running after stop event")
	}
}

func TestEngineLoopCount(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("loops")
	m.Loop = true
	m.LoopCount = 3
	scroll := quickAction(macro.KindMouseScroll)
	scroll.ScrollAmount = -3
	m.Actions = []macro.Action{scroll}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	if n := countKind(events, EventLoop); n != 3 {
		t.Errorf("loop events = %d, want 3", n)
	}
	if n := len(s.snapshot()); n != 3 {
		t.Errorf("scrolls = %d, want 3", n)
	}
}

func TestEngineStartWhileRunning(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("long")
	wait := quickAction(macro.KindWait)
	wait.DurationMS = 60000
	m.Actions = []macro.Action{wait}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the worker a moment to enter the wait.
	time.Sleep(20 * time.Millisecond)

	if err := e.Start(m); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}

	e.Stop()
	e.Stop() // idempotent
	drainUntilStopped(t, e)
}

func TestEngineStopDuringStart(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("long")
	wait := quickAction(macro.KindWait)
	wait.DurationMS = 60000
	m.Actions = []macro.Action{wait}

	// Stop as soon as the run is observable. A stop landing inside Start
	// must still cancel the run, never be dropped.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for !e.IsRunning() {
		}
		e.Stop()
	}()

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-stopped

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == EventStopped {
				return
			}
		case <-deadline:
			t.Fatal("run not cancelled by stop issued during start")
		}
	}
}

func TestEngineStopMidInterpolation(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s, StepSleep: 20 * time.Millisecond})

	m := macro.New("interrupt")
	m.HumanizeLevel = 1.0 // 30 interpolation steps
	move := quickAction(macro.KindMouseMove)
	move.SetTarget(3000, 0)
	key := quickAction(macro.KindKeyPress)
	key.Key = "x"
	m.Actions = []macro.Action{move, key}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond) // a few steps in
	e.Stop()
	drainUntilStopped(t, e)

	ops := s.snapshot()
	if len(ops) == 0 || len(ops) >= 30 {
		t.Errorf("move halted after %d steps, want partial", len(ops))
	}
	for _, op := range ops {
		if strings.HasPrefix(op, "key") {
			t.Errorf("action after cancellation: %q", op)
		}
	}
	if e.IsRunning() {
		t.Error("engine not idle after stop")
	}
}

func TestEngineExecutionFault(t *testing.T) {
	s := &fakeSink{keyErr: errors.New("device rejected input")}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("fault")
	key := quickAction(macro.KindKeyPress)
	key.Key = "a"
	scroll := quickAction(macro.KindMouseScroll)
	m.Actions = []macro.Action{key, scroll}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	if n := countKind(events, EventError); n != 1 {
		t.Fatalf("error events = %d, want 1", n)
	}
	for _, op := range s.snapshot() {
		if strings.HasPrefix(op, "scroll") {
			t.Error("actions continued after fault")
		}
	}
	if e.IsRunning() {
		t.Error("engine not idle after fault")
	}
}

func TestEngineImageTimeoutContinues(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{
		Sink:         s,
		Matcher:      &fakeMatcher{score: 0.1},
		PollInterval: 20 * time.Millisecond,
	})

	m := macro.New("gated")
	img := quickAction(macro.KindImageWait)
	img.TemplateB64 = tinyPNG
	img.CVTimeoutMS = 80
	scroll := quickAction(macro.KindMouseScroll)
	scroll.ScrollAmount = 2
	m.Actions = []macro.Action{img, scroll}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	if countKind(events, EventWarning) != 1 {
		t.Errorf("warning events = %d, want 1", countKind(events, EventWarning))
	}
	found := false
	for _, op := range s.snapshot() {
		if op == "scroll 2" {
			found = true
		}
	}
	if !found {
		t.Error("playback did not continue past the timed-out image action")
	}
}

func TestEngineImageClickAtMatchCenter(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{
		Sink:         s,
		Matcher:      &fakeMatcher{score: 0.99, center: image.Pt(40, 50)},
		PollInterval: time.Millisecond,
	})

	m := macro.New("imgclick")
	img := quickAction(macro.KindImageClick)
	img.TemplateB64 = tinyPNG
	m.Actions = []macro.Action{img}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drainUntilStopped(t, e)

	want := []string{"move 40,50", "toggle left true", "toggle left false"}
	got := s.snapshot()
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEngineBadTemplateDegrades(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s, Matcher: &fakeMatcher{score: 0.99}})

	m := macro.New("badtpl")
	img := quickAction(macro.KindImageClick)
	img.TemplateB64 = "bm90IGFuIGltYWdl" // valid base64, not an image
	scroll := quickAction(macro.KindMouseScroll)
	scroll.ScrollAmount = 7
	m.Actions = []macro.Action{img, scroll}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	if countKind(events, EventError) != 0 {
		t.Error("bad template raised a fatal error")
	}
	if countKind(events, EventWarning) != 1 {
		t.Errorf("warning events = %d, want 1", countKind(events, EventWarning))
	}
	if got := s.snapshot(); len(got) != 1 || got[0] != "scroll 7" {
		t.Errorf("ops = %v, want only the scroll", got)
	}
}

func TestEngineNoMatcherWarnsOnce(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	m := macro.New("nomatcher")
	a := quickAction(macro.KindImageWait)
	a.TemplateB64 = tinyPNG
	b := quickAction(macro.KindImageWait)
	b.TemplateB64 = tinyPNG
	m.Actions = []macro.Action{a, b}

	if err := e.Start(m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drainUntilStopped(t, e)

	if n := countKind(events, EventWarning); n != 1 {
		t.Errorf("warning events = %d, want exactly 1", n)
	}
	if countKind(events, EventError) != 0 {
		t.Error("missing matcher treated as fatal")
	}
}

func TestSmoothMoveReachesTarget(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	e.smoothMove(context.Background(), 100, 0, 1.0)

	ops := s.snapshot()
	if len(ops) != 30 {
		t.Fatalf("steps = %d, want 30", len(ops))
	}
	if ops[len(ops)-1] != "move 100,0" {
		t.Errorf("final step = %q, want move 100,0", ops[len(ops)-1])
	}
}

func TestSmoothMoveInstantWhenBarelyHumanized(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})

	e.smoothMove(context.Background(), 37, 73, 0.05)

	ops := s.snapshot()
	if len(ops) != 1 || ops[0] != "move 37,73" {
		t.Errorf("ops = %v, want single jump", ops)
	}
}

func TestAntiIdlePulse(t *testing.T) {
	s := &fakeSink{}
	e := newTestEngine(t, Options{Sink: s})
	e.idleTick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.runAntiIdle(ctx, 15*time.Millisecond)
		close(done)
	}()

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	ops := s.snapshot()
	joined := strings.Join(ops, ";")
	for _, want := range []string{"toggle right true", "moverel 1,0", "moverel -1,0", "toggle right false"} {
		if !strings.Contains(joined, want) {
			t.Errorf("pulse missing %q in %v", want, ops)
		}
	}
}

func TestJitterDelayBounds(t *testing.T) {
	seq := []float64{0, 0.25, 0.5, 0.75, 0.999}
	idx := 0
	rnd := func() float64 {
		v := seq[idx%len(seq)]
		idx++
		return v
	}

	for _, d := range []int{0, 5, 10, 100, 1000} {
		for _, h := range []float64{0, 0.3, 1.0} {
			for i := 0; i < len(seq); i++ {
				got := JitterDelayMS(d, h, rnd)
				if got < minDelayMS {
					t.Fatalf("JitterDelayMS(%d, %v) = %d, below floor", d, h, got)
				}
				upper := float64(d) * (1 + 0.5*h)
				if upper < minDelayMS {
					upper = minDelayMS
				}
				if float64(got) > upper {
					t.Fatalf("JitterDelayMS(%d, %v) = %d, above %v", d, h, got, upper)
				}
			}
		}
	}
}

func TestNewRequiresSink(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNilSink) {
		t.Errorf("New without sink = %v, want ErrNilSink", err)
	}
}
