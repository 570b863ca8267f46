package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// pixel returns the three channel values at (x, y) of a CHW tensor.
func pixel(data []float32, size, x, y int) [3]float32 {
	plane := size * size
	i := y*size + x
	return [3]float32{data[i], data[plane+i], data[2*plane+i]}
}

func TestPreprocess_YOLOLetterbox(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	data := encodePNG(t, solidImage(200, 100, red))

	p := NewPreprocessor(YOLOConfig(64))
	result, err := p.Preprocess(&Image{Format: ImageFormatPNG, Data: data})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 64, 64}, result.Shape)
	assert.Len(t, result.Data, 3*64*64)
	assert.Equal(t, 200, result.Letterbox.OriginalWidth)
	assert.Equal(t, 100, result.Letterbox.OriginalHeight)
	assert.Equal(t, 64, result.Letterbox.InputWidth)
	assert.InDelta(t, 0.32, result.Letterbox.Scale(), 1e-9)

	// The scaled image is 64x32, centred with 16 rows of padding above and below.
	grey := float32(114) / 255
	for _, y := range []int{0, 15, 48, 63} {
		got := pixel(result.Data, 64, 32, y)
		assert.InDelta(t, grey, got[0], 1e-6, "row %d", y)
		assert.InDelta(t, grey, got[1], 1e-6, "row %d", y)
		assert.InDelta(t, grey, got[2], 1e-6, "row %d", y)
	}

	center := pixel(result.Data, 64, 32, 32)
	assert.InDelta(t, 1.0, center[0], 0.02)
	assert.InDelta(t, 0.0, center[1], 0.02)
	assert.InDelta(t, 0.0, center[2], 0.02)
}

func TestPreprocess_BGR(t *testing.T) {
	cfg := YOLOConfig(32)
	cfg.ColorMode = ColorModeBGR
	p := NewPreprocessor(cfg)

	result, err := p.PreprocessImage(solidImage(32, 32, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	center := pixel(result.Data, 32, 16, 16)
	assert.InDelta(t, 0.0, center[0], 0.02)
	assert.InDelta(t, 1.0, center[2], 0.02)
}

func TestPreprocess_Standardize(t *testing.T) {
	cfg := YOLOConfig(16)
	cfg.NormalizationType = NormalizeStandardize
	cfg.MeanValues = []float32{100, 100, 100}
	cfg.StdValues = []float32{10, 10, 10}
	p := NewPreprocessor(cfg)

	result, err := p.PreprocessImage(solidImage(16, 16, color.RGBA{R: 120, G: 100, B: 80, A: 255}))
	require.NoError(t, err)

	center := pixel(result.Data, 16, 8, 8)
	assert.InDelta(t, 2.0, center[0], 0.2)
	assert.InDelta(t, 0.0, center[1], 0.2)
	assert.InDelta(t, -2.0, center[2], 0.2)
}

func TestPreprocess_JPEG(t *testing.T) {
	data := encodeJPEG(t, solidImage(120, 90, color.RGBA{R: 10, G: 200, B: 30, A: 255}))

	result, err := NewPreprocessor(YOLOConfig(48)).Preprocess(&Image{Format: ImageFormatJPEG, Data: data})
	require.NoError(t, err)
	assert.Equal(t, 120, result.Letterbox.OriginalWidth)
	assert.Equal(t, 90, result.Letterbox.OriginalHeight)
	assert.Equal(t, 120, result.Image.Bounds().Dx())
}

func TestPreprocess_Validation(t *testing.T) {
	p := NewPreprocessor(YOLOConfig(32))

	tests := []struct {
		name  string
		img   *Image
		empty bool
	}{
		{"nil image", nil, true},
		{"no data", &Image{Format: ImageFormatJPEG}, true},
		{"garbage", &Image{Data: []byte("not an image")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Preprocess(tt.img)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.empty, errors.Is(err, ErrEmptyImage))
			assert.Equal(t, !tt.empty, errors.Is(err, ErrUndecodableImage))
		})
	}

	_, err := p.PreprocessImage(image.NewRGBA(image.Rect(0, 0, 0, 10)))
	assert.True(t, errors.Is(err, ErrEmptyImage))
}

func TestNewPreprocessor_Defaults(t *testing.T) {
	cfg := NewPreprocessor(ModelConfig{}).Config()
	assert.Equal(t, DefaultInputSize, cfg.InputWidth)
	assert.Equal(t, DefaultInputSize, cfg.InputHeight)
	assert.Equal(t, PadColor, cfg.LetterboxColor)
}

func TestBatchPreprocess(t *testing.T) {
	p := NewPreprocessor(YOLOConfig(16))
	imgs := []*Image{
		{Data: encodePNG(t, solidImage(10, 20, color.White))},
		{Data: encodePNG(t, solidImage(30, 10, color.Black))},
		{Data: encodePNG(t, solidImage(5, 5, color.White))},
	}

	results, err := p.BatchPreprocess(imgs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 10, results[0].Letterbox.OriginalWidth)
	assert.Equal(t, 30, results[1].Letterbox.OriginalWidth)
	assert.Equal(t, 5, results[2].Letterbox.OriginalWidth)

	_, err = p.BatchPreprocess(append(imgs, &Image{}), 0)
	assert.True(t, errors.Is(err, ErrEmptyImage))
}
