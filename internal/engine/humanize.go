package engine

import "math"

// Humanization constants. Click targets scatter slightly more than plain
// moves; the floor keeps jittered delays from reaching zero.
const (
	minDelayMS     = 10
	clickJitterMax = 3.0
	moveJitterMax  = 2.0
	wobbleMax      = 2.0
)

// uniform draws from U(lo, hi) using the engine's random source.
func uniform(rnd func() float64, lo, hi float64) float64 {
	return lo + (hi-lo)*rnd()
}

// JitterDelayMS perturbs a base delay (milliseconds) by up to ±50% scaled
// by the humanization intensity h. The result never drops below the
// 10 ms floor.
func JitterDelayMS(base int, h float64, rnd func() float64) int {
	jitter := int(float64(base) * h * 0.5 * uniform(rnd, -1, 1))
	d := base + jitter
	if d < minDelayMS {
		return minDelayMS
	}
	return d
}

// jitterTarget scatters a pointer target by up to ±k units per axis,
// scaled by h.
func jitterTarget(x, y int, h, k float64, rnd func() float64) (int, int) {
	if h <= 0 {
		return x, y
	}
	return x + int(h*uniform(rnd, -k, k)), y + int(h*uniform(rnd, -k, k))
}

// wobble is the sinusoidal lateral offset added at interpolation progress
// t in [0,1].
func wobble(t, h float64, rnd func() float64) float64 {
	return math.Sin(t*math.Pi) * h * uniform(rnd, -wobbleMax, wobbleMax)
}
