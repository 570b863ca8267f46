package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSet(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Log().Info("decoded", zap.Int("detections", 3))
	S().Infow("merged", "clusters", 1)
	zap.L().Info("global")
	Sync()

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "decoded", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["detections"])
	assert.Equal(t, "global", entries[2].Message)
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })

	require.NoError(t, Init(true))
	assert.True(t, Log().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init(false))
	assert.False(t, Log().Core().Enabled(zap.DebugLevel))
	assert.NotNil(t, S())
}
