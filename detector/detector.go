// Package detector - Image to detections through a pool of inference runners.
package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/nvr-ai/cacao-scan/metrics"
	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector closed")

// Runner executes the network on one preprocessed input. *inference.Session implements it.
type Runner interface {
	Run(ctx context.Context, input []float32) (postprocess.RawOutput, error)
}

// Config represents the configuration for the detector.
type Config struct {
	// Model prepares inputs and interprets outputs.
	Model model.Model
	// Runners are used concurrently, each by one Detect call at a time.
	Runners []Runner
	// Metrics receives stage durations and detection counts. May be nil.
	Metrics *metrics.Metrics
	// Logger may be nil.
	Logger *zap.Logger
}

// Timings holds the duration of each stage of one Detect call.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
}

// Total returns the sum of the stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Postprocess
}

// Result is the outcome of one Detect call.
type Result struct {
	Detections []postprocess.Detection `json:"detections"`
	Letterbox  postprocess.Letterbox   `json:"letterbox"`
	Timings    Timings                 `json:"timings"`
	// Image is the decoded, orientation-corrected input.
	Image image.Image `json:"-"`
}

// Detector runs the full pipeline. It is safe for concurrent use.
type Detector struct {
	model   model.Model
	runners chan Runner
	size    int
	metrics *metrics.Metrics
	logger  *zap.Logger
	closed  chan struct{}
	once    sync.Once
}

// New creates a detector over cfg.Runners.
func New(cfg Config) (*Detector, error) {
	if cfg.Model == nil {
		return nil, errors.New("detector requires a model")
	}
	if len(cfg.Runners) == 0 {
		return nil, errors.New("detector requires at least one runner")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	runners := make(chan Runner, len(cfg.Runners))
	for _, r := range cfg.Runners {
		runners <- r
	}
	return &Detector{
		model:   cfg.Model,
		runners: runners,
		size:    len(cfg.Runners),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		closed:  make(chan struct{}),
	}, nil
}

// Model returns the model the detector runs.
func (d *Detector) Model() model.Model {
	return d.model
}

// Detect decodes an encoded image and returns its final detections.
//
// Arguments:
//   - ctx: Bounds the wait for a free runner and is passed to the runner.
//   - img: The encoded image.
//
// Returns:
//   - *Result: Detections in descending score order plus stage timings.
//   - error: preprocess.ErrEmptyImage, postprocess.ErrMalformedShape and
//     postprocess.ErrDegenerateImage are wrapped and can be tested with errors.Is.
func (d *Detector) Detect(ctx context.Context, img *preprocess.Image) (*Result, error) {
	start := time.Now()
	prepared, err := d.model.PreProcess(img)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess failed")
	}
	preprocessTime := time.Since(start)

	res, err := d.DetectPrepared(ctx, prepared)
	if err != nil {
		return nil, err
	}
	res.Timings.Preprocess = preprocessTime
	d.observe(metrics.StagePreprocess, preprocessTime)
	return res, nil
}

// DetectPrepared runs inference and post-processing on an already prepared input.
func (d *Detector) DetectPrepared(ctx context.Context, prepared *preprocess.Result) (*Result, error) {
	runner, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := runner.Run(ctx, prepared.Data)
	d.runners <- runner
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	inferenceTime := time.Since(start)

	start = time.Now()
	detections, err := d.model.PostProcess(raw, prepared.Letterbox)
	if err != nil {
		d.logger.Warn("post-processing failed",
			zap.Ints("shape", raw.Shape),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "postprocess failed")
	}
	postprocessTime := time.Since(start)

	d.observe(metrics.StageInference, inferenceTime)
	d.observe(metrics.StagePostprocess, postprocessTime)
	if d.metrics != nil {
		for _, det := range detections {
			d.metrics.AddDetections(det.Label)
		}
	}
	d.logger.Debug("detection complete",
		zap.Int("detections", len(detections)),
		zap.Duration("inference", inferenceTime),
		zap.Duration("postprocess", postprocessTime),
	)

	return &Result{
		Detections: detections,
		Letterbox:  prepared.Letterbox,
		Timings: Timings{
			Inference:   inferenceTime,
			Postprocess: postprocessTime,
		},
		Image: prepared.Image,
	}, nil
}

// acquire takes a free runner, waiting until one is returned, ctx is done or the detector
// is closed.
func (d *Detector) acquire(ctx context.Context) (Runner, error) {
	select {
	case <-d.closed:
		return nil, ErrClosed
	default:
	}
	select {
	case r := <-d.runners:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.closed:
		return nil, ErrClosed
	}
}

func (d *Detector) observe(stage string, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveStage(stage, elapsed)
	}
}

// Close stops new calls and waits for in-flight runs to return their runners. Runners
// implementing Close() are closed.
func (d *Detector) Close() {
	d.once.Do(func() {
		close(d.closed)
		for i := 0; i < d.size; i++ {
			r := <-d.runners
			if c, ok := r.(interface{ Close() }); ok {
				c.Close()
			}
		}
	})
}
