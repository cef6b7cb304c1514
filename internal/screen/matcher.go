// Package screen provides screen capture and normalized template matching
// behind a narrow interface, plus the poll loop that gates image actions.
package screen

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"

	// Register the decoders templates are stored in.
	_ "image/jpeg"
	_ "image/png"
)

// Sentinel errors for the matcher.
var (
	// ErrNoTemplate is returned when an image action carries no template.
	ErrNoTemplate = errors.New("no template image configured")

	// ErrUnavailable is returned when the capture backend cannot produce
	// a screenshot on this system.
	ErrUnavailable = errors.New("screen capture unavailable")
)

// Matcher captures the screen and locates a template in it.
type Matcher interface {
	// Match captures the screen, runs normalized template correlation and
	// returns the center of the best-scoring location with its score in
	// [0,1]. A failed capture returns an error wrapping ErrUnavailable.
	Match(tpl image.Image) (center image.Point, score float64, err error)
}

// DecodeTemplate loads the template image of an action: inline base64
// bytes take precedence, then a file path. Returns ErrNoTemplate when the
// action has neither.
func DecodeTemplate(b64, path string) (image.Image, error) {
	switch {
	case b64 != "":
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decoding template base64: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding template image: %w", err)
		}
		return img, nil
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening template %s: %w", path, err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding template %s: %w", path, err)
		}
		return img, nil
	default:
		return nil, ErrNoTemplate
	}
}
