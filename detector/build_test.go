package detector

import (
	"path/filepath"
	"testing"

	"github.com/nvr-ai/cacao-scan/config"
	"github.com/stretchr/testify/assert"
)

func TestFromConfigErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Name = "resnet50"
	_, err := FromConfig(cfg, nil, nil)
	assert.ErrorContains(t, err, "failed to create model")

	cfg = config.Default()
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.onnx")
	cfg.Workers = 2
	_, err = FromConfig(cfg, nil, nil)
	assert.ErrorContains(t, err, "inference session 0")
}
