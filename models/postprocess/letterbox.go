package postprocess

import "github.com/pkg/errors"

// Letterbox records how an original image was fitted into the model input: scaled
// uniformly to fit, then centred with padding.
type Letterbox struct {
	InputWidth     int `json:"input_width" yaml:"input_width"`
	InputHeight    int `json:"input_height" yaml:"input_height"`
	OriginalWidth  int `json:"original_width" yaml:"original_width"`
	OriginalHeight int `json:"original_height" yaml:"original_height"`
}

// Validate rejects letterboxes with a zero or negative dimension.
func (l Letterbox) Validate() error {
	if l.OriginalWidth <= 0 || l.OriginalHeight <= 0 {
		return errors.Wrapf(ErrDegenerateImage, "original size %dx%d", l.OriginalWidth, l.OriginalHeight)
	}
	if l.InputWidth <= 0 || l.InputHeight <= 0 {
		return errors.Wrapf(ErrDegenerateImage, "input size %dx%d", l.InputWidth, l.InputHeight)
	}
	return nil
}

// Scale returns the uniform factor applied to the original image.
func (l Letterbox) Scale() float64 {
	return min(
		float64(l.InputWidth)/float64(l.OriginalWidth),
		float64(l.InputHeight)/float64(l.OriginalHeight),
	)
}

// Offsets returns the horizontal and vertical padding before the scaled image. The values
// are not rounded.
func (l Letterbox) Offsets() (x, y float64) {
	s := l.Scale()
	x = (float64(l.InputWidth) - float64(l.OriginalWidth)*s) / 2
	y = (float64(l.InputHeight) - float64(l.OriginalHeight)*s) / 2
	return x, y
}

// ToInput maps a point in original pixels to letterboxed input pixels.
func (l Letterbox) ToInput(x, y float64) (float64, float64) {
	s := l.Scale()
	xOff, yOff := l.Offsets()
	return x*s + xOff, y*s + yOff
}

// ToOriginal maps a point in letterboxed input pixels back to original pixels.
func (l Letterbox) ToOriginal(x, y float64) (float64, float64) {
	s := l.Scale()
	xOff, yOff := l.Offsets()
	return (x - xOff) / s, (y - yOff) / s
}
