// Package inference - ONNX Runtime sessions for detection models.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("inference session closed")

var envMu sync.Mutex

// initEnvironment loads the onnxruntime library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "error initializing ORT environment from %s", libPath)
	}
	return nil
}

// Stats summarizes the runs of a session.
type Stats struct {
	Runs      int64         `json:"runs"`
	TotalTime time.Duration `json:"total_time"`
}

// Average returns the mean run duration.
func (s Stats) Average() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Runs)
}

// Session represents a model session from the onnxruntime with fixed input and output
// tensors. A Session runs one inference at a time.
type Session struct {
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	inputShape  []int64
	outputShape []int64
	logger      *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewSession loads a model and allocates its tensors.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: Logger for session lifecycle events. A no-op logger is used when nil.
//
// Returns:
//   - *Session: The ready session.
//   - error: An error if the runtime, model or tensors could not be set up.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	libPath := cfg.SharedLibraryPath
	if libPath == "" {
		libPath = DefaultSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get model input/output info")
	}
	inputInfo, err := selectInfo(inputs, cfg.InputName, "input")
	if err != nil {
		return nil, err
	}
	outputInfo, err := selectInfo(outputs, cfg.OutputName, "output")
	if err != nil {
		return nil, err
	}
	outputShape, err := resolveOutputShape(outputInfo.Dimensions)
	if err != nil {
		return nil, err
	}
	inputShape := []int64{1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth)}

	options, err := sessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputInfo.Name},
		[]string{outputInfo.Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	logger.Info("inference session ready",
		zap.String("model", cfg.ModelPath),
		zap.String("provider", string(cfg.Provider)),
		zap.String("input", inputInfo.Name),
		zap.Int64s("input_shape", inputShape),
		zap.String("output", outputInfo.Name),
		zap.Int64s("output_shape", outputShape),
	)

	return &Session{
		session:     session,
		input:       inputTensor,
		output:      outputTensor,
		inputShape:  inputShape,
		outputShape: outputShape,
		logger:      logger,
	}, nil
}

// selectInfo picks the tensor called name, or the first one when name is empty.
func selectInfo(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, errors.Errorf("model has no %s tensors", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, errors.Errorf("model has no %s named %q", kind, name)
}

// resolveOutputShape fixes a dynamic batch dimension to 1. Any other dynamic dimension is
// rejected because the output tensor is allocated up front.
func resolveOutputShape(dims []int64) ([]int64, error) {
	if len(dims) == 0 {
		return nil, errors.New("model output has no dimensions")
	}
	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0 && len(dims) > 2:
			shape[i] = 1
		default:
			return nil, errors.Errorf("model output shape %v is dynamic; export the model with a fixed input size", dims)
		}
	}
	return shape, nil
}

// sessionOptions builds the runtime options for cfg, including the execution provider.
func sessionOptions(cfg Config) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		options.Destroy()
		return nil, errors.Wrap(err, msg)
	}

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return fail(err, "error setting intra-op threads")
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return fail(err, "error setting inter-op threads")
		}
	}

	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return fail(err, "invalid provider")
	}
	switch provider {
	case ProviderCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "error creating CUDA options")
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(cfg.CUDA.native()); err != nil {
			return fail(err, "error updating CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return fail(err, "error enabling CUDA")
		}
	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return fail(err, "error enabling CoreML")
		}
	case ProviderOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "CPU"}); err != nil {
			return fail(err, "error enabling OpenVINO")
		}
	}
	return options, nil
}

// InputShape returns the input tensor shape [1, 3, H, W].
func (s *Session) InputShape() []int64 {
	return append([]int64(nil), s.inputShape...)
}

// OutputShape returns the output tensor shape.
func (s *Session) OutputShape() []int64 {
	return append([]int64(nil), s.outputShape...)
}

// Run copies input into the input tensor, runs the model and returns a copy of the output.
//
// Arguments:
//   - ctx: Checked before the run starts. A run in progress cannot be interrupted.
//   - input: CHW float32 data matching InputShape.
//
// Returns:
//   - postprocess.RawOutput: The output buffer with its shape.
//   - error: ErrClosed, a size mismatch or a runtime error.
func (s *Session) Run(ctx context.Context, input []float32) (postprocess.RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return postprocess.RawOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return postprocess.RawOutput{}, ErrClosed
	}

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return postprocess.RawOutput{}, errors.Errorf("input has %d values, session expects %d", len(input), len(dst))
	}
	copy(dst, input)

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return postprocess.RawOutput{}, errors.Wrap(err, "error running ORT session")
	}
	s.stats.Runs++
	s.stats.TotalTime += time.Since(start)

	out := append([]float32(nil), s.output.GetData()...)
	return wrapOutput(out, s.outputShape)
}

// wrapOutput turns a flat buffer and runtime shape into a RawOutput via a dense tensor.
func wrapOutput(data []float32, shape []int64) (postprocess.RawOutput, error) {
	dims := make([]int, len(shape))
	size := 1
	for i, d := range shape {
		dims[i] = int(d)
		size *= dims[i]
	}
	if size != len(data) || size == 0 {
		return postprocess.RawOutput{}, errors.Wrapf(postprocess.ErrMalformedShape,
			"output has %d values for shape %v", len(data), shape)
	}
	return postprocess.RawOutputFromTensor(tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)))
}

// Stats returns the run statistics so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
		s.logger.Info("inference session closed", zap.Int64("runs", s.stats.Runs))
	}
}
