// Package benchmark - Latency and throughput measurement of the detection pipeline.
package benchmark

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/nvr-ai/cacao-scan/detector"
	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/nvr-ai/cacao-scan/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Detector is the part of *detector.Detector a benchmark drives.
type Detector interface {
	Detect(ctx context.Context, img *preprocess.Image) (*detector.Result, error)
}

// StageMetrics holds the mean duration of each pipeline stage.
type StageMetrics struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
}

// LatencyMetrics summarizes per-image latencies.
type LatencyMetrics struct {
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	Max  time.Duration `json:"max"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario       `json:"scenario"`
	Timestamp       time.Time      `json:"timestamp"`
	TotalDuration   time.Duration  `json:"total_duration"`
	Stages          StageMetrics   `json:"stages"`
	Latency         LatencyMetrics `json:"latency"`
	FramesPerSecond float64        `json:"frames_per_second"`
	MemoryStats     MemoryMetrics  `json:"memory_stats"`
	NumCPU          int            `json:"num_cpu"`
	DetectionCount  int            `json:"detection_count"`
	ErrorRate       float64        `json:"error_rate"`
}

type sample struct {
	latency    time.Duration
	timings    detector.Timings
	detections int
	err        error
}

// Run executes one scenario against det over the corpus.
//
// Arguments:
//   - ctx: Cancels the run. Iterations not started are counted as errors.
//   - det: The detector under test.
//   - corpus: Images used round-robin.
//   - scenario: Iteration, warmup and concurrency settings.
//   - logger: May be nil.
//
// Returns:
//   - *PerformanceMetrics: The measurements.
//   - error: An error if the corpus is empty or the scenario is invalid.
func Run(ctx context.Context, det Detector, corpus []util.ImageFile, scenario Scenario, logger *zap.Logger) (*PerformanceMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(corpus) == 0 {
		return nil, errors.New("benchmark corpus is empty")
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := det.Detect(ctx, corpus[i%len(corpus)].Image()); err != nil {
			logger.Debug("warmup run failed", zap.Int("run", i), zap.Error(err))
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	samples := make([]sample, scenario.Iterations)
	jobs := make(chan int)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < scenario.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t0 := time.Now()
				res, err := det.Detect(ctx, corpus[i%len(corpus)].Image())
				s := sample{latency: time.Since(t0), err: err}
				if err == nil {
					s.timings = res.Timings
					s.detections = len(res.Detections)
				}
				samples[i] = s
			}
		}()
	}
	for i := 0; i < scenario.Iterations; i++ {
		if ctx.Err() != nil {
			samples[i].err = ctx.Err()
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	totalDuration := time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := summarize(samples)
	metrics.Scenario = scenario
	metrics.Timestamp = start
	metrics.TotalDuration = totalDuration
	metrics.FramesPerSecond = float64(scenario.Iterations) / totalDuration.Seconds()
	metrics.NumCPU = runtime.NumCPU()
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}

	logger.Info("scenario complete",
		zap.String("scenario", scenario.Name),
		zap.Float64("fps", metrics.FramesPerSecond),
		zap.Duration("p95", metrics.Latency.P95),
		zap.Float64("error_rate", metrics.ErrorRate),
	)
	return metrics, nil
}

// summarize aggregates the successful samples. Failed samples only count towards the
// error rate.
func summarize(samples []sample) *PerformanceMetrics {
	m := &PerformanceMetrics{}
	latencies := make([]time.Duration, 0, len(samples))
	var stages StageMetrics
	var total time.Duration
	errs := 0
	for _, s := range samples {
		if s.err != nil {
			errs++
			continue
		}
		latencies = append(latencies, s.latency)
		total += s.latency
		stages.Preprocess += s.timings.Preprocess
		stages.Inference += s.timings.Inference
		stages.Postprocess += s.timings.Postprocess
		m.DetectionCount += s.detections
	}
	if len(samples) > 0 {
		m.ErrorRate = float64(errs) / float64(len(samples))
	}
	n := time.Duration(len(latencies))
	if n == 0 {
		return m
	}

	slices.Sort(latencies)
	m.Latency = LatencyMetrics{
		Mean: total / n,
		P50:  percentile(latencies, 0.50),
		P95:  percentile(latencies, 0.95),
		Max:  latencies[len(latencies)-1],
	}
	m.Stages = StageMetrics{
		Preprocess:  stages.Preprocess / n,
		Inference:   stages.Inference / n,
		Postprocess: stages.Postprocess / n,
	}
	return m
}

// percentile returns the nearest-rank percentile of sorted values.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.5) - 1
	return sorted[min(max(rank, 0), len(sorted)-1)]
}
