// Package yolo - Ultralytics YOLO detectors (v8, 11 and 11-OBB).
package yolo

import (
	"fmt"
	"sync"

	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
)

// Model is an instance of a YOLO detector.
//
// The score encoding is resolved from the first non-empty output when configured as auto
// and then pinned for the lifetime of the model.
type Model struct {
	options      model.BaseModel
	pipeline     postprocess.Options
	preprocessor *preprocess.Preprocessor

	mu       sync.RWMutex
	encoding postprocess.ScoreEncoding
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model. ClassNames must be set.
//
// Returns:
//   - The model.
//   - An error when the arguments are incomplete.
func NewModel(args model.NewModelArgs) (*Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv8, model.ModelNameYOLO11, model.ModelNameYOLO11OBB:
	default:
		return nil, fmt.Errorf("yolo.NewModel does not support %q", args.Name)
	}
	if len(args.ClassNames) == 0 {
		return nil, fmt.Errorf("NewModel requires class names to be set")
	}
	if args.ScoreFloor < 0 || args.ScoreFloor >= 1 {
		return nil, fmt.Errorf("score floor %v outside [0, 1)", args.ScoreFloor)
	}

	inputSize := args.InputSize
	if inputSize <= 0 {
		inputSize = preprocess.DefaultInputSize
	}
	inputs := args.Inputs
	if len(inputs) == 0 {
		inputs = []string{"images"}
	}
	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = []string{"output0"}
	}

	pipeline := postprocess.DefaultOptions(append([]string(nil), args.ClassNames...))
	if args.ScoreFloor > 0 {
		pipeline.Decode.ScoreFloor = args.ScoreFloor
	}
	pipeline.Decode.Encoding = args.Encoding
	if args.NMS != nil {
		pipeline.NMS = *args.NMS
	}
	if args.TouchIoU > 0 {
		pipeline.TouchIoU = args.TouchIoU
	}

	return &Model{
		options: model.BaseModel{
			Name:        args.Name,
			Family:      args.Family,
			Path:        args.Path,
			ClassNames:  pipeline.Decode.ClassNames,
			InputWidth:  inputSize,
			InputHeight: inputSize,
			Inputs:      inputs,
			Outputs:     outputs,
			Oriented:    args.Name == model.ModelNameYOLO11OBB,
		},
		pipeline:     pipeline,
		preprocessor: preprocess.NewPreprocessor(preprocess.YOLOConfig(inputSize)),
		encoding:     args.Encoding,
	}, nil
}

// Options returns the description of the model.
func (m *Model) Options() model.BaseModel {
	return m.options
}

// Pipeline returns the post-processing settings, with the score encoding as currently
// resolved.
func (m *Model) Pipeline() postprocess.Options {
	opts := m.pipeline
	opts.Decode.Encoding = m.Encoding()
	return opts
}

// Encoding returns the score encoding, ScoreEncodingAuto until the first output was seen.
func (m *Model) Encoding() postprocess.ScoreEncoding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.encoding
}

// PreProcess letterboxes an encoded image to the network input.
func (m *Model) PreProcess(img *preprocess.Image) (*preprocess.Result, error) {
	return m.preprocessor.Preprocess(img)
}

// PostProcess turns one raw output into detections.
func (m *Model) PostProcess(raw postprocess.RawOutput, lb postprocess.Letterbox) ([]postprocess.Detection, error) {
	enc, pin, err := m.resolveEncoding(raw)
	if err != nil {
		return nil, err
	}
	opts := m.pipeline
	opts.Decode.Encoding = enc

	detections, err := postprocess.Process(raw, lb, opts)
	if err != nil {
		return nil, err
	}
	if pin {
		m.mu.Lock()
		if m.encoding == postprocess.ScoreEncodingAuto {
			m.encoding = enc
		}
		m.mu.Unlock()
	}
	return detections, nil
}

// resolveEncoding returns the encoding to decode raw with, and whether it was freshly
// calibrated and should be pinned once decoding succeeds.
func (m *Model) resolveEncoding(raw postprocess.RawOutput) (postprocess.ScoreEncoding, bool, error) {
	if enc := m.Encoding(); enc != postprocess.ScoreEncodingAuto {
		return enc, false, nil
	}
	// Leave an empty output to the decoder and keep waiting for real scores.
	if len(raw.Data) == 0 {
		return postprocess.ScoreEncodingAuto, false, nil
	}

	enc, err := postprocess.CalibrateScoreEncoding(raw, len(m.pipeline.Decode.ClassNames), m.pipeline.Decode.SampleAnchors)
	if err != nil {
		return postprocess.ScoreEncodingAuto, false, err
	}
	return enc, true, nil
}
