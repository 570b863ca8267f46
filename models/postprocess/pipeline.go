package postprocess

// DefaultScoreFloor is the lowest class probability the decoder keeps.
const DefaultScoreFloor = 0.01

// Options bundles the settings for every stage of Process.
type Options struct {
	Decode   DecodeOptions `json:"decode" yaml:"decode"`
	NMS      NMSConfig     `json:"nms" yaml:"nms"`
	TouchIoU float64       `json:"touch_iou" yaml:"touch_iou"`
}

// DefaultOptions returns the pipeline settings for a model with the given classes.
func DefaultOptions(classNames []string) Options {
	return Options{
		Decode: DecodeOptions{
			ClassNames:    classNames,
			ScoreFloor:    DefaultScoreFloor,
			Encoding:      ScoreEncodingAuto,
			SampleAnchors: DefaultSampleAnchors,
		},
		NMS:      DefaultNMSConfig(),
		TouchIoU: DefaultTouchIoU,
	}
}

// Process runs decode, suppression and cluster merging over one raw output.
//
// Arguments:
//   - raw: The raw detector output.
//   - lb: The letterbox used to prepare the input.
//   - opts: Pipeline settings, usually from DefaultOptions.
//
// Returns:
//   - The final detections ordered by descending score. Never nil on success.
//   - A wrapped ErrMalformedShape or ErrDegenerateImage.
func Process(raw RawOutput, lb Letterbox, opts Options) ([]Detection, error) {
	candidates, err := Decode(raw, lb, opts.Decode)
	if err != nil {
		return nil, err
	}
	return Finalize(candidates, opts), nil
}

// Finalize runs suppression and cluster merging over decoded candidates.
func Finalize(candidates []Candidate, opts Options) []Detection {
	kept := ApplyNMS(candidates, &opts.NMS)
	merged := MergeClusters(kept, opts.TouchIoU)

	out := make([]Detection, len(merged))
	for i, c := range merged {
		out[i] = c.Detection()
	}
	return out
}
