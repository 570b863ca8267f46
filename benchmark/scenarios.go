package benchmark

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// InputSize overrides the model input side. 0 keeps the configured size.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Workers overrides the number of inference sessions. 0 keeps the configured count.
	Workers     int `json:"workers" yaml:"workers"`
	Concurrency int `json:"concurrency" yaml:"concurrency"`
	Iterations  int `json:"iterations" yaml:"iterations"`
	WarmupRuns  int `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks the scenario.
func (s Scenario) Validate() error {
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %q: iterations must be positive", s.Name)
	}
	if s.Concurrency <= 0 {
		return errors.Errorf("scenario %q: concurrency must be positive", s.Name)
	}
	if s.WarmupRuns < 0 || s.InputSize < 0 || s.Workers < 0 {
		return errors.Errorf("scenario %q: negative settings", s.Name)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:        name,
			Concurrency: 1,
			Iterations:  100,
			WarmupRuns:  10,
		},
	}
}

// WithInputSize sets the model input side.
func (sb *ScenarioBuilder) WithInputSize(size int) *ScenarioBuilder {
	sb.scenario.InputSize = size
	return sb
}

// WithWorkers sets the number of inference sessions.
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// WithConcurrency sets the number of concurrent Detect calls.
func (sb *ScenarioBuilder) WithConcurrency(n int) *ScenarioBuilder {
	sb.scenario.Concurrency = n
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// QuickScenarios returns a short smoke run at the default input size.
func QuickScenarios() []Scenario {
	return []Scenario{
		NewScenarioBuilder("quick").WithIterations(20).WithWarmupRuns(2).Build(),
	}
}

// ResolutionScenarios compares the common YOLO input sides.
func ResolutionScenarios() []Scenario {
	var out []Scenario
	for _, size := range []int{640, 800, 1024} {
		out = append(out, NewScenarioBuilder(fmt.Sprintf("input-%d", size)).
			WithInputSize(size).
			WithIterations(50).
			Build())
	}
	return out
}

// ConcurrencyScenarios compares worker pool sizes under matching load.
func ConcurrencyScenarios(maxWorkers int) []Scenario {
	var out []Scenario
	for w := 1; w <= maxWorkers; w *= 2 {
		out = append(out, NewScenarioBuilder(fmt.Sprintf("workers-%d", w)).
			WithWorkers(w).
			WithConcurrency(w).
			WithIterations(50*w).
			Build())
	}
	return out
}

// LoadScenarios reads a YAML list of scenarios.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scenarios %s", path)
	}
	var scenarios []Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scenarios %s", path)
	}
	for i := range scenarios {
		if scenarios[i].Concurrency == 0 {
			scenarios[i].Concurrency = 1
		}
		if err := scenarios[i].Validate(); err != nil {
			return nil, err
		}
	}
	return scenarios, nil
}
