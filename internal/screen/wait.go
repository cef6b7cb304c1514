package screen

import (
	"context"
	"errors"
	"image"
	"time"
)

// DefaultPollInterval is the delay between match attempts while waiting
// for a template to appear. Empirical tuning value, overridable per call.
const DefaultPollInterval = 200 * time.Millisecond

// WaitFor polls the matcher until the template scores at least confidence,
// the timeout elapses, or ctx is cancelled. It returns the match center
// and true on success, and false on timeout or cancellation. Capture
// errors abort the wait.
func WaitFor(ctx context.Context, m Matcher, tpl image.Image, confidence float64, timeout, poll time.Duration) (image.Point, bool, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	start := time.Now()

	for {
		if ctx.Err() != nil {
			return image.Point{}, false, nil
		}
		if time.Since(start) > timeout {
			return image.Point{}, false, nil
		}

		center, score, err := m.Match(tpl)
		if err != nil {
			return image.Point{}, false, err
		}
		if score >= confidence {
			return center, true, nil
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return image.Point{}, false, nil
		case <-timer.C:
		}
	}
}

// Available reports whether the capture backend works on this system. A
// single probe capture is attempted.
func Available(m Matcher) bool {
	_, _, err := m.Match(probeImage)
	return err == nil || !errors.Is(err, ErrUnavailable)
}

var probeImage = image.NewRGBA(image.Rect(0, 0, 2, 2))
