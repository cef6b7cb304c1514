package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/input/sink"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
	"github.com/GregAuRizzz/generic-macro-app/internal/screen"
)

// Timing defaults. The poll interval and tap hold are empirical tuning
// values carried from the established behavior; both are overridable
// through Options.
const (
	DefaultKeyTapHold  = 50 * time.Millisecond
	DefaultEventBuffer = 128
	defaultKeyHoldMS   = 500
	defaultWaitMS      = 1000
)

// Options configure an Engine. Sink is required; everything else has a
// usable default.
type Options struct {
	Sink    sink.Sink
	Matcher screen.Matcher // nil degrades image actions to warned no-ops
	Logger  *slog.Logger

	PollInterval time.Duration // image match poll cadence
	KeyTapHold   time.Duration // press duration for key taps
	StepSleep    time.Duration // pause between interpolation steps
	EventBuffer  int

	// Rand is the uniform [0,1) source for humanization. Defaults to the
	// shared math/rand source; tests inject a deterministic one.
	Rand func() float64
}

// Engine replays macros. See the package documentation for the
// concurrency and event-delivery model.
type Engine struct {
	sink    sink.Sink
	matcher screen.Matcher
	log     *slog.Logger

	poll       time.Duration
	keyTapHold time.Duration
	stepSleep  time.Duration
	idleTick   time.Duration
	rand       func() float64

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc

	events  chan Event
	dropped atomic.Uint64

	matcherWarned atomic.Bool
}

// New builds an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Sink == nil {
		return nil, ErrNilSink
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = screen.DefaultPollInterval
	}
	if opts.KeyTapHold <= 0 {
		opts.KeyTapHold = DefaultKeyTapHold
	}
	if opts.StepSleep <= 0 {
		opts.StepSleep = DefaultStepSleep
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}

	return &Engine{
		sink:       opts.Sink,
		matcher:    opts.Matcher,
		log:        opts.Logger,
		poll:       opts.PollInterval,
		keyTapHold: opts.KeyTapHold,
		stepSleep:  opts.StepSleep,
		idleTick:   time.Second,
		rand:       opts.Rand,
		events:     make(chan Event, opts.EventBuffer),
	}, nil
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Start begins playback of the macro on a dedicated worker goroutine.
// The engine holds a read-only reference to the macro for the duration of
// the run; the caller must not mutate it until the run ends. Starting a
// running engine has no effect and returns ErrRunning.
func (e *Engine) Start(m *macro.Macro) error {
	if m == nil {
		return ErrNilMacro
	}
	// The cancel func is published under the same lock Stop acquires, so
	// a Stop that observes the run as started always finds it set.
	e.mu.Lock()
	if !e.running.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	if m.AntiAFK && m.AntiAFKInterval > 0 {
		go e.runAntiIdle(ctx, time.Duration(m.AntiAFKInterval)*time.Second)
	}
	go e.run(ctx, cancel, m)
	return nil
}

// Stop requests cancellation of the current run and returns immediately.
// The worker reports completion with an EventStopped. Stopping an idle
// engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// run is the worker owning one playback run end to end.
func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, m *macro.Macro) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("action panicked: %v", r)
			e.log.Error("engine fault", "error", msg)
			e.emit(Event{Kind: EventError, Message: msg})
		}
		cancel() // tears down the anti-idle loop on every exit path
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		e.running.Store(false)
		e.emit(Event{Kind: EventStopped})
	}()

	e.log.Info("playback started", "macro", m.Name, "actions", len(m.Actions))
	e.emit(Event{Kind: EventStarted})

	loop := 0
	for ctx.Err() == nil {
		loop++
		e.emit(Event{Kind: EventLoop, Loop: loop})

		for i := range m.Actions {
			if ctx.Err() != nil {
				break
			}
			e.emit(Event{Kind: EventAction, Index: i})
			if err := e.execute(ctx, m.Actions[i], m.HumanizeLevel); err != nil {
				e.log.Error("engine fault", "action", i, "error", err)
				e.emit(Event{Kind: EventError, Message: fmt.Sprintf("action %d (%s): %v", i, m.Actions[i].Type, err)})
				return
			}
		}

		if !m.Loop {
			break
		}
		if m.LoopCount > 0 && loop >= m.LoopCount {
			break
		}
	}
	e.log.Info("playback finished", "macro", m.Name, "loops", loop)
}

// execute dispatches one action, then applies its humanized post-action
// delay. Unknown kinds are a fault.
func (e *Engine) execute(ctx context.Context, a macro.Action, h float64) error {
	switch a.Type {
	case macro.KindMouseClick:
		if err := e.mouseClick(ctx, a, h); err != nil {
			return err
		}

	case macro.KindMouseMove:
		if x, y, ok := a.Target(); ok {
			jx, jy := jitterTarget(x, y, h, moveJitterMax, e.rand)
			e.smoothMove(ctx, jx, jy, h)
		}

	case macro.KindMouseScroll:
		e.sink.Scroll(a.ScrollAmount)

	case macro.KindKeyPress:
		if a.Key != "" {
			if err := e.tapKey(ctx, a.Key, e.keyTapHold); err != nil {
				return err
			}
		}

	case macro.KindKeyHold:
		if a.Key != "" {
			hold := a.DurationMS
			if hold <= 0 {
				hold = defaultKeyHoldMS
			}
			if err := e.tapKey(ctx, a.Key, time.Duration(hold)*time.Millisecond); err != nil {
				return err
			}
		}

	case macro.KindWait:
		wait := a.DurationMS
		if wait <= 0 {
			wait = defaultWaitMS
		}
		e.sleep(ctx, time.Duration(wait)*time.Millisecond)

	case macro.KindTypeText:
		if a.Text != "" {
			e.sink.TypeText(a.Text)
		}

	case macro.KindImageWait, macro.KindImageClick:
		if err := e.executeImage(ctx, a, h); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %d", macro.ErrUnknownKind, a.Type)
	}

	if delay := a.DelayAfterMS; delay > 0 {
		if h > 0 {
			delay = JitterDelayMS(delay, h, e.rand)
		}
		e.sleep(ctx, time.Duration(delay)*time.Millisecond)
	}
	return nil
}

// mouseClick optionally moves to the (jittered) target, then performs the
// configured number of press/release cycles with randomized gaps.
func (e *Engine) mouseClick(ctx context.Context, a macro.Action, h float64) error {
	if x, y, ok := a.Target(); ok {
		jx, jy := jitterTarget(x, y, h, clickJitterMax, e.rand)
		e.smoothMove(ctx, jx, jy, h)
	}

	clicks := a.Clicks
	if clicks < 1 {
		clicks = 1
	}
	for i := 0; i < clicks; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := e.sink.Toggle(a.Button, true); err != nil {
			return err
		}
		e.sleep(ctx, time.Duration(40+h*uniform(e.rand, 0, 30))*time.Millisecond)
		if err := e.sink.Toggle(a.Button, false); err != nil {
			return err
		}
		if clicks > 1 {
			e.sleep(ctx, time.Duration(60+h*uniform(e.rand, 0, 40))*time.Millisecond)
		}
	}
	return nil
}

// tapKey presses a key, holds it for the given duration, and releases it.
// The release happens even when the hold is cut short by cancellation.
func (e *Engine) tapKey(ctx context.Context, key string, hold time.Duration) error {
	if err := e.sink.KeyToggle(key, true); err != nil {
		return err
	}
	e.sleep(ctx, hold)
	return e.sink.KeyToggle(key, false)
}

// executeImage runs the image-gated wait, clicking the match center for
// image-click actions. Degradations (no matcher, bad template, timeout)
// warn and continue; capture faults during an otherwise healthy run are
// also degradations, reported once.
func (e *Engine) executeImage(ctx context.Context, a macro.Action, h float64) error {
	if e.matcher == nil {
		e.warnMatcherOnce("image matching unavailable on this system; image actions are skipped")
		return nil
	}

	tpl, err := screen.DecodeTemplate(a.TemplateB64, a.TemplatePath)
	if err != nil {
		e.log.Warn("skipping image action", "error", err)
		e.emit(Event{Kind: EventWarning, Message: fmt.Sprintf("skipping image action: %v", err)})
		return nil
	}

	timeout := a.CVTimeoutMS
	if timeout <= 0 {
		timeout = macro.DefaultCVTimeout
	}

	center, found, err := screen.WaitFor(ctx, e.matcher, tpl, a.ClampedConfidence(), time.Duration(timeout)*time.Millisecond, e.poll)
	if err != nil {
		if errors.Is(err, screen.ErrUnavailable) {
			e.warnMatcherOnce(fmt.Sprintf("screen capture unavailable; image actions are skipped: %v", err))
			return nil
		}
		return err
	}
	if !found {
		if ctx.Err() == nil {
			e.log.Warn("image not found before timeout", "timeout_ms", timeout)
			e.emit(Event{Kind: EventWarning, Message: "image not found before timeout"})
		}
		return nil
	}

	if a.Type == macro.KindImageClick {
		jx, jy := jitterTarget(center.X, center.Y, h, clickJitterMax, e.rand)
		e.smoothMove(ctx, jx, jy, h)
		e.sleep(ctx, 50*time.Millisecond)
		if err := e.sink.Toggle("left", true); err != nil {
			return err
		}
		e.sleep(ctx, 60*time.Millisecond)
		return e.sink.Toggle("left", false)
	}
	return nil
}

func (e *Engine) warnMatcherOnce(msg string) {
	if e.matcherWarned.CompareAndSwap(false, true) {
		e.log.Warn(msg)
		e.emit(Event{Kind: EventWarning, Message: msg})
	}
}

// sleep pauses for d or until the context is cancelled, whichever comes
// first. Returns false when cut short.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
