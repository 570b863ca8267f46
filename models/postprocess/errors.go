package postprocess

import "github.com/pkg/errors"

var (
	// ErrMalformedShape is returned when the raw output cannot be interpreted as a detection
	// tensor for the configured classes.
	ErrMalformedShape = errors.New("malformed detector output")
	// ErrDegenerateImage is returned when the letterbox describes an empty image.
	ErrDegenerateImage = errors.New("degenerate image dimensions")
)
