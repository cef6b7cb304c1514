package screen

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/vcaesar/gcv"
)

// Robot captures via robotgo and matches with gcv's normalized
// cross-correlation template matcher.
type Robot struct{}

// NewRobot returns a robotgo/gcv-backed matcher.
func NewRobot() *Robot {
	return &Robot{}
}

// Match captures the full screen and searches it for tpl.
func (r *Robot) Match(tpl image.Image) (image.Point, float64, error) {
	shot, err := robotgo.CaptureImg()
	if err != nil {
		return image.Point{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, maxVal, _, maxLoc := gcv.FindImg(tpl, shot)

	b := tpl.Bounds()
	center := image.Point{
		X: maxLoc.X + b.Dx()/2,
		Y: maxLoc.Y + b.Dy()/2,
	}
	return center, float64(maxVal), nil
}
