package engine

import (
	"context"
	"math"
	"time"
)

// DefaultStepSleep is the pause between interpolation steps.
const DefaultStepSleep = 5 * time.Millisecond

// instantThreshold is the humanization level below which moves are
// performed in a single jump.
const instantThreshold = 0.1

// smoothMove moves the pointer from its current position to (tx, ty)
// along a smoothstep-eased path with humanized lateral wobble. The
// context is checked before every step; a cancelled move stops where it
// is, with no rollback.
func (e *Engine) smoothMove(ctx context.Context, tx, ty int, h float64) {
	if h < instantThreshold {
		e.sink.Move(tx, ty)
		return
	}

	cx, cy := e.sink.Location()
	steps := int(math.Round(30 * h))
	if steps < 8 {
		steps = 8
	}

	for i := 1; i <= steps; i++ {
		if ctx.Err() != nil {
			return
		}
		t := float64(i) / float64(steps)
		tEase := t * t * (3 - 2*t) // smoothstep
		nx := float64(cx) + float64(tx-cx)*tEase
		ny := float64(cy) + float64(ty-cy)*tEase
		w := wobble(t, h, e.rand)
		e.sink.Move(int(nx+w), int(ny+w))
		e.sleep(ctx, e.stepSleep)
	}
}
