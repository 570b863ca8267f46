// Package config - YAML configuration of the cacao-scan service.
package config

import (
	"os"
	"time"

	"github.com/nvr-ai/cacao-scan/inference"
	"github.com/nvr-ai/cacao-scan/metrics"
	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied by Load.
const (
	EnvModelPath = "CACAO_MODEL_PATH"
	EnvListen    = "CACAO_LISTEN"
)

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Listen          string        `json:"listen" yaml:"listen"`
	MaxUploadBytes  int64         `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Development bool `json:"development" yaml:"development"`
}

// MonitorConfig configures process sampling.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Config is the complete service configuration.
type Config struct {
	Model     model.NewModelArgs `json:"model" yaml:"model"`
	Inference inference.Config   `json:"inference" yaml:"inference"`
	Server    ServerConfig       `json:"server" yaml:"server"`
	// Workers is the number of inference sessions run in parallel.
	Workers int           `json:"workers" yaml:"workers"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
}

// Default returns the configuration for the cacao YOLO11 detector on CPU.
func Default() Config {
	return Config{
		Model: model.NewModelArgs{
			Name:      model.ModelNameYOLO11,
			Path:      "models/cacao.onnx",
			Family:    model.ModelFamilyCacao,
			InputSize: 1024,
		},
		Inference: inference.Config{
			Provider: inference.ProviderCPU,
		},
		Server: ServerConfig{
			Listen:          ":8080",
			MaxUploadBytes:  20 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workers: 1,
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: metrics.DefaultMonitorInterval,
		},
	}
}

// Load reads a YAML file over Default and applies the environment overrides.
//
// Arguments:
//   - path: The YAML file. An empty path loads only the defaults and the environment.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if the file cannot be read or parsed, or the result is invalid.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model path cannot be empty")
	}
	if c.Model.InputSize < 0 {
		return errors.Errorf("invalid input size %d", c.Model.InputSize)
	}
	if c.Model.ScoreFloor < 0 || c.Model.ScoreFloor >= 1 {
		return errors.Errorf("score floor %v outside [0, 1)", c.Model.ScoreFloor)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Server.Listen == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("max upload size must be positive")
	}
	if _, err := inference.ParseProvider(string(c.Inference.Provider)); err != nil {
		return err
	}
	return nil
}

// InferenceConfig returns the session configuration with the model path and input size
// taken from the model section.
func (c Config) InferenceConfig() inference.Config {
	ic := c.Inference
	ic.ModelPath = c.Model.Path
	size := c.Model.InputSize
	if size <= 0 {
		size = Default().Model.InputSize
	}
	ic.InputWidth = size
	ic.InputHeight = size
	if ic.InputName == "" && len(c.Model.Inputs) > 0 {
		ic.InputName = c.Model.Inputs[0]
	}
	if ic.OutputName == "" && len(c.Model.Outputs) > 0 {
		ic.OutputName = c.Model.Outputs[0]
	}
	return ic
}
