// Package metrics - Prometheus metrics for the detection service.
package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Namespace prefixes every metric name.
const Namespace = "cacao_scan"

// DefaultMonitorInterval is how often process usage is sampled.
const DefaultMonitorInterval = 500 * time.Millisecond

// Pipeline stage labels.
const (
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	detections *prometheus.CounterVec
	memUsage   prometheus.Gauge
	cpuUsage   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by status code",
		}, []string{"status"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each detection pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "detections_total",
			Help:      "Total number of detections returned by class label",
		}, []string{"label"}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_usage_megabytes",
			Help:      "Resident memory of the process in megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cpu_usage_percent",
			Help:      "CPU usage of the process in percent",
		}),
	}
	m.registry.MustRegister(m.requests, m.stages, m.detections, m.memUsage, m.cpuUsage)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts one finished request.
func (m *Metrics) ObserveRequest(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// AddDetections counts returned detections by label.
func (m *Metrics) AddDetections(labels ...string) {
	for _, l := range labels {
		m.detections.WithLabelValues(l).Inc()
	}
}

// SampleProcess updates the memory and CPU gauges from p.
func (m *Metrics) SampleProcess(p *process.Process) error {
	mem, err := p.MemoryInfo()
	if err != nil {
		return errors.Wrap(err, "error reading process memory")
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return errors.Wrap(err, "error reading process cpu")
	}
	m.memUsage.Set(float64(mem.RSS / 1024 / 1024))
	m.cpuUsage.Set(math.Round(cpu*100) / 100)
	return nil
}

// StartProcessMonitor samples the current process every interval until ctx is done.
//
// Arguments:
//   - ctx: Stops the monitor when cancelled.
//   - interval: Sampling period, DefaultMonitorInterval when <= 0.
//   - logger: Receives sampling failures. May be nil.
func (m *Metrics) StartProcessMonitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	p := &process.Process{Pid: int32(os.Getpid())}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SampleProcess(p); err != nil {
				logger.Warn("process sampling failed", zap.Error(err))
			}
		}
	}
}
