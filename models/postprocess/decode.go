package postprocess

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/cacao-scan/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultSampleAnchors is the number of anchors inspected when detecting the score encoding.
const DefaultSampleAnchors = 100

// ScoreEncoding describes how the class channels of a raw output are encoded.
type ScoreEncoding int

const (
	// ScoreEncodingAuto inspects the output to pick between probabilities and logits.
	ScoreEncodingAuto ScoreEncoding = iota
	// ScoreEncodingProbability means class scores are already in [0, 1].
	ScoreEncodingProbability
	// ScoreEncodingLogit means class scores are raw logits that need a sigmoid.
	ScoreEncodingLogit
)

func (e ScoreEncoding) String() string {
	switch e {
	case ScoreEncodingProbability:
		return "probability"
	case ScoreEncodingLogit:
		return "logit"
	default:
		return "auto"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e ScoreEncoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *ScoreEncoding) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "auto":
		*e = ScoreEncodingAuto
	case "probability", "prob", "sigmoid":
		*e = ScoreEncodingProbability
	case "logit", "logits", "raw":
		*e = ScoreEncodingLogit
	default:
		return fmt.Errorf("unknown score encoding %q", text)
	}
	return nil
}

// RawOutput is the flat float buffer produced by a detector together with its shape.
type RawOutput struct {
	Data  []float32 `json:"data" yaml:"data"`
	Shape []int     `json:"shape" yaml:"shape"`
}

// NewRawOutput wraps a buffer and a runtime-reported shape.
func NewRawOutput(data []float32, shape []int64) RawOutput {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return RawOutput{Data: data, Shape: dims}
}

// RawOutputFromTensor wraps a float32 tensor. The tensor must be materialized: a lazily
// transposed view would expose its untransposed backing data.
func RawOutputFromTensor(t *tensor.Dense) (RawOutput, error) {
	if t == nil {
		return RawOutput{}, errors.Wrap(ErrMalformedShape, "nil tensor")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return RawOutput{}, errors.Wrapf(ErrMalformedShape, "tensor dtype %v is not float32", t.Dtype())
	}
	return RawOutput{Data: data, Shape: append([]int(nil), t.Shape()...)}, nil
}

// layout describes how features and anchors are arranged in a raw output.
type layout struct {
	features int
	anchors  int
	// anchorMajor is true when each anchor's features are contiguous.
	anchorMajor bool
}

// index returns the flat position of feature f for anchor a.
func (l layout) index(f, a int) int {
	if l.anchorMajor {
		return a*l.features + f
	}
	return f*l.anchors + a
}

// inspectShape validates the shape and works out the layout. The smaller of the two
// trailing dimensions is taken as the feature axis. empty reports a tensor with no elements.
func inspectShape(raw RawOutput) (l layout, empty bool, err error) {
	rank := len(raw.Shape)
	if rank < 2 {
		return l, false, errors.Wrapf(ErrMalformedShape, "rank %d, expected at least 2", rank)
	}
	for _, d := range raw.Shape {
		if d < 0 {
			return l, false, errors.Wrapf(ErrMalformedShape, "negative dimension in shape %v", raw.Shape)
		}
	}
	for _, d := range raw.Shape[:rank-2] {
		if d != 1 {
			return l, false, errors.Wrapf(ErrMalformedShape, "batch dimensions %v, expected 1", raw.Shape[:rank-2])
		}
	}
	rows, cols := raw.Shape[rank-2], raw.Shape[rank-1]
	if rows == 0 || cols == 0 {
		return l, true, nil
	}

	if rows <= cols {
		l = layout{features: rows, anchors: cols}
	} else {
		l = layout{features: cols, anchors: rows, anchorMajor: true}
	}
	// Divide rather than multiply so huge shapes cannot overflow.
	if l.anchors > len(raw.Data)/l.features {
		return l, false, errors.Wrapf(ErrMalformedShape, "buffer holds %d values, too few for shape %v",
			len(raw.Data), raw.Shape)
	}
	return l, false, nil
}

// CalibrateScoreEncoding inspects the class channels of the first sampleAnchors anchors. Any
// value above 1.0 means the model emits logits.
//
// Arguments:
//   - raw: The raw detector output.
//   - numClasses: The number of class channels following the four box channels.
//   - sampleAnchors: How many anchors to inspect; DefaultSampleAnchors when <= 0.
//
// Returns:
//   - The detected encoding, never ScoreEncodingAuto.
//   - An error if the shape is malformed.
func CalibrateScoreEncoding(raw RawOutput, numClasses, sampleAnchors int) (ScoreEncoding, error) {
	l, empty, err := inspectShape(raw)
	if err != nil {
		return ScoreEncodingAuto, err
	}
	if empty {
		return ScoreEncodingProbability, nil
	}
	if sampleAnchors <= 0 {
		sampleAnchors = DefaultSampleAnchors
	}
	sampleAnchors = min(sampleAnchors, l.anchors)
	lastClass := min(4+numClasses, l.features)

	maxScore := math32.Inf(-1)
	for a := 0; a < sampleAnchors; a++ {
		for f := 4; f < lastClass; f++ {
			maxScore = max(maxScore, raw.Data[l.index(f, a)])
		}
	}
	if maxScore > 1.0 {
		return ScoreEncodingLogit, nil
	}
	return ScoreEncodingProbability, nil
}

// DecodeOptions controls how a raw output is turned into candidates.
type DecodeOptions struct {
	// ClassNames in model output order. Their count fixes the expected feature count.
	ClassNames []string `json:"class_names" yaml:"class_names"`
	// ScoreFloor drops anchors whose best class probability does not exceed it.
	ScoreFloor float32 `json:"score_floor" yaml:"score_floor"`
	// Encoding of the class channels.
	Encoding ScoreEncoding `json:"encoding" yaml:"encoding"`
	// SampleAnchors is the calibration sample size used with ScoreEncodingAuto.
	SampleAnchors int `json:"sample_anchors" yaml:"sample_anchors"`
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// Decode converts a raw YOLO-style output into candidates in original-image coordinates.
//
// Each anchor contributes cx, cy, w, h in letterboxed input pixels, one score per class, and
// optionally a rotation in radians. The best class must score above the floor. Boxes are
// mapped back through the letterbox and normalized to [0, 1] of the original image.
//
// Arguments:
//   - raw: The raw detector output, shaped (1, features, anchors) or (1, anchors, features).
//   - lb: The letterbox used to prepare the input.
//   - opts: Class names, score floor and score encoding.
//
// Returns:
//   - The candidates in anchor order. Empty when the tensor has no anchors.
//   - ErrMalformedShape or ErrDegenerateImage (wrapped) when the inputs cannot be decoded.
func Decode(raw RawOutput, lb Letterbox, opts DecodeOptions) ([]Candidate, error) {
	if err := lb.Validate(); err != nil {
		return nil, err
	}
	l, empty, err := inspectShape(raw)
	if err != nil {
		return nil, err
	}
	if empty {
		return []Candidate{}, nil
	}

	numClasses := len(opts.ClassNames)
	if numClasses == 0 {
		return nil, errors.Wrap(ErrMalformedShape, "no class names configured")
	}
	var rotated bool
	switch l.features {
	case 4 + numClasses:
	case 4 + numClasses + 1:
		rotated = true
	default:
		return nil, errors.Wrapf(ErrMalformedShape, "%d features does not fit %d classes", l.features, numClasses)
	}

	encoding := opts.Encoding
	if encoding == ScoreEncodingAuto {
		if encoding, err = CalibrateScoreEncoding(raw, numClasses, opts.SampleAnchors); err != nil {
			return nil, err
		}
	}
	logits := encoding == ScoreEncodingLogit

	scale := lb.Scale()
	xOff, yOff := lb.Offsets()
	origW, origH := float64(lb.OriginalWidth), float64(lb.OriginalHeight)
	at := func(f, a int) float32 { return raw.Data[l.index(f, a)] }

	candidates := make([]Candidate, 0, 64)
	for a := 0; a < l.anchors; a++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			score := at(4+c, a)
			if logits {
				score = sigmoid(score)
			}
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore <= opts.ScoreFloor {
			continue
		}

		cx := (float64(at(0, a)) - xOff) / scale
		cy := (float64(at(1, a)) - yOff) / scale
		w := float64(at(2, a)) / scale
		h := float64(at(3, a)) / scale

		cand := Candidate{
			ClassIndex: bestClass,
			Label:      opts.ClassNames[bestClass],
			Confidence: bestScore,
			Box: images.Rect{
				X: (cx - w/2) / origW,
				Y: (cy - h/2) / origH,
				W: w / origW,
				H: h / origH,
			},
		}
		if rotated {
			cand.Aspect = origW / origH
			cand.Oriented = &images.OrientedRect{
				CX:    cx / origW,
				CY:    cy / origH,
				W:     w / origW,
				H:     h / origH,
				Angle: float64(at(4+numClasses, a)),
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
