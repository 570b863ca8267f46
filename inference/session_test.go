package inference

import (
	"testing"
	"time"

	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestResolveOutputShape(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		want    []int64
		wantErr bool
	}{
		{"fixed", []int64{1, 7, 21504}, []int64{1, 7, 21504}, false},
		{"dynamic batch", []int64{-1, 8, 21504}, []int64{1, 8, 21504}, false},
		{"dynamic anchors", []int64{1, 7, -1}, nil, true},
		{"rank two dynamic", []int64{-1, 7}, nil, true},
		{"empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOutputShape(tt.dims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectInfo(t *testing.T) {
	infos := []ort.InputOutputInfo{{Name: "output0"}, {Name: "output1"}}

	got, err := selectInfo(infos, "", "output")
	require.NoError(t, err)
	assert.Equal(t, "output0", got.Name)

	got, err = selectInfo(infos, "output1", "output")
	require.NoError(t, err)
	assert.Equal(t, "output1", got.Name)

	_, err = selectInfo(infos, "boxes", "output")
	assert.Error(t, err)
	_, err = selectInfo(nil, "", "input")
	assert.Error(t, err)
}

func TestWrapOutput(t *testing.T) {
	data := make([]float32, 7*16)
	data[5] = 0.5

	raw, err := wrapOutput(data, []int64{1, 7, 16})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7, 16}, raw.Shape)
	assert.Equal(t, float32(0.5), raw.Data[5])

	_, err = wrapOutput(data, []int64{1, 8, 16})
	assert.True(t, errors.Is(err, postprocess.ErrMalformedShape))
}

func TestStats_Average(t *testing.T) {
	assert.Zero(t, Stats{}.Average())
	assert.Equal(t, 20*time.Millisecond, Stats{Runs: 3, TotalTime: 60 * time.Millisecond}.Average())
}

func TestSession_RunAfterClose(t *testing.T) {
	s := &Session{}
	s.Close()
	_, err := s.Run(t.Context(), nil)
	assert.ErrorIs(t, err, ErrClosed)
}
