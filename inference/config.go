package inference

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Provider names an ONNX Runtime execution provider.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA runs on an NVIDIA GPU.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML runs through Apple CoreML.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO runs through Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// ParseProvider returns the provider for a case-insensitive name. An empty name means CPU.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProviderCPU, nil
	case ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderOpenVINO:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported execution provider: %s", name)
	}
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// The size limit of the device memory arena in bytes. Zero leaves the runtime default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// kNextPowerOfTwo or kSameAsRequested.
	ArenaExtendStrategy string `json:"arena_extend_strategy" yaml:"arena_extend_strategy"`
	// EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `json:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search"`
}

// native returns the provider option map understood by ONNX Runtime.
func (o CUDAOptions) native() map[string]string {
	opts := map[string]string{
		"device_id": fmt.Sprintf("%d", o.DeviceID),
	}
	if o.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	if o.ArenaExtendStrategy != "" {
		opts["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		opts["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return opts
}

// Config describes an inference session.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the onnxruntime shared library. DefaultSharedLibPath when empty.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// Provider is the execution provider.
	Provider Provider `json:"provider" yaml:"provider"`
	// CUDA holds the CUDA provider options.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// IntraOpThreads parallelizes within graph nodes. 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelizes across graph nodes. 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// InputName and OutputName select the tensors. The first model input/output when empty.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputWidth and InputHeight are the network input size.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
}

// Validate checks the configuration before a session is built.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts cannot be negative")
	}
	return nil
}

// SharedLibEnv overrides the onnxruntime library location.
const SharedLibEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// DefaultSharedLibPath returns the onnxruntime shared library for this platform, preferring
// the SharedLibEnv environment variable.
func DefaultSharedLibPath() string {
	if p := os.Getenv(SharedLibEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
