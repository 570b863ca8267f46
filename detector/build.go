package detector

import (
	"github.com/nvr-ai/cacao-scan/config"
	"github.com/nvr-ai/cacao-scan/inference"
	"github.com/nvr-ai/cacao-scan/metrics"
	"github.com/nvr-ai/cacao-scan/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FromConfig builds the model and cfg.Workers inference sessions and returns a detector
// over them.
//
// Arguments:
//   - cfg: The validated service configuration.
//   - m: Metrics sink. May be nil.
//   - logger: May be nil.
//
// Returns:
//   - *Detector: The detector. Close releases its sessions.
//   - error: An error if the model or a session could not be created.
func FromConfig(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mdl, err := models.NewModel(cfg.Model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create model")
	}

	workers := max(cfg.Workers, 1)
	runners := make([]Runner, 0, workers)
	closeAll := func() {
		for _, r := range runners {
			r.(*inference.Session).Close()
		}
	}
	for i := 0; i < workers; i++ {
		session, err := inference.NewSession(cfg.InferenceConfig(), logger.With(zap.Int("worker", i)))
		if err != nil {
			closeAll()
			return nil, errors.Wrapf(err, "failed to create inference session %d", i)
		}
		runners = append(runners, session)
	}

	logger.Info("detector ready",
		zap.String("model", string(cfg.Model.Name)),
		zap.String("path", cfg.Model.Path),
		zap.Int("workers", workers),
	)
	return New(Config{Model: mdl, Runners: runners, Metrics: m, Logger: logger})
}
