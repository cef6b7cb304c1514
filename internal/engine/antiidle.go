package engine

import (
	"context"
	"time"
)

// runAntiIdle ticks once per tick interval, accumulating elapsed time and
// firing an idle pulse every interval. It shares nothing with the main
// worker beyond the sink and the run context, and exits whenever the run
// context is cancelled.
func (e *Engine) runAntiIdle(ctx context.Context, interval time.Duration) {
	e.log.Info("anti-afk started", "interval", interval)
	ticker := time.NewTicker(e.idleTick)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed += e.idleTick
			if elapsed >= interval {
				elapsed = 0
				e.idlePulse(ctx)
			}
		}
	}
}

// idlePulse sends a minimal camera nudge: hold the secondary button,
// move the pointer one unit out and back, release.
func (e *Engine) idlePulse(ctx context.Context) {
	e.log.Debug("anti-afk pulse")
	if err := e.sink.Toggle("right", true); err != nil {
		e.log.Warn("anti-afk press failed", "error", err)
		return
	}
	e.sleep(ctx, 50*time.Millisecond)
	e.sink.MoveRelative(1, 0)
	e.sleep(ctx, 50*time.Millisecond)
	e.sink.MoveRelative(-1, 0)
	e.sleep(ctx, 50*time.Millisecond)
	// Always release, even if the context was cancelled mid-pulse.
	if err := e.sink.Toggle("right", false); err != nil {
		e.log.Warn("anti-afk release failed", "error", err)
	}
}
