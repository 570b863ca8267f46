// Package preprocess - Image preparation for detection models.
package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"

	// Register decoders used by imaging.Decode.
	_ "image/jpeg"
	_ "image/png"
)

// DefaultInputSize is the square input side the cacao detector was trained at.
const DefaultInputSize = 1024

// ErrEmptyImage is returned when there is no image data or the decoded image has no pixels.
var ErrEmptyImage = errors.New("empty image")

// ErrUndecodableImage is returned when the data is not a supported image.
var ErrUndecodableImage = errors.New("image could not be decoded")

// PadColor is the grey used by YOLO letterboxing.
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// ImageFormat represents the format of an image.
type ImageFormat string

const (
	// ImageFormatJPEG represents JPEG image format.
	ImageFormatJPEG ImageFormat = "jpeg"
	// ImageFormatPNG represents PNG image format.
	ImageFormatPNG ImageFormat = "png"
)

// Image represents an encoded input image.
type Image struct {
	// The format of the image, informational only. Decoding sniffs the content.
	Format ImageFormat `json:"format" yaml:"format"`
	// The encoded bytes of the image.
	Data []byte `json:"data" yaml:"data"`
}

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeStandardize applies mean and std normalization per channel.
	NormalizeStandardize
)

// ColorMode defines the channel order of the output tensor.
type ColorMode int

const (
	// ColorModeRGB is standard RGB order.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR order.
	ColorModeBGR
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues for standardization, one per channel.
	MeanValues []float32
	// StdValues for standardization, one per channel.
	StdValues []float32
	// ColorMode defines the channel order.
	ColorMode ColorMode
	// LetterboxColor is the color used for padding.
	LetterboxColor color.Color
	// Interpolation used when scaling the image.
	Interpolation resize.InterpolationFunction
}

// Result contains the preprocessed tensor and the letterbox that produced it.
type Result struct {
	// Data is the CHW float32 tensor.
	Data []float32
	// Shape is the tensor shape [1, 3, H, W].
	Shape []int64
	// Letterbox maps model coordinates back to the original image.
	Letterbox postprocess.Letterbox
	// Image is the decoded, orientation-corrected original image.
	Image image.Image
}

// Preprocessor handles image preprocessing for ONNX models.
type Preprocessor struct {
	config     ModelConfig
	bufferPool *sync.Pool
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model-specific preprocessing configuration.
//
// Returns:
// - A configured Preprocessor instance.
//
// @example
//
//	preprocessor := NewPreprocessor(YOLOConfig(1024))
func NewPreprocessor(config ModelConfig) *Preprocessor {
	if config.LetterboxColor == nil {
		config.LetterboxColor = PadColor
	}
	if config.InputWidth <= 0 {
		config.InputWidth = DefaultInputSize
	}
	if config.InputHeight <= 0 {
		config.InputHeight = DefaultInputSize
	}

	return &Preprocessor{
		config: config,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Config returns the configuration in use.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess decodes, letterboxes and tensorizes an encoded image.
//
// Arguments:
// - img: The encoded input image.
//
// Returns:
// - Result containing the tensor and letterbox.
// - ErrEmptyImage or ErrUndecodableImage (wrapped) when there is no usable image.
//
// @example
//
//	result, err := preprocessor.Preprocess(&Image{Data: jpegData})
//	if err != nil {
//	    return err
//	}
//	outputs, err := session.Run(ctx, result.Data)
func (p *Preprocessor) Preprocess(img *Image) (*Result, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.Wrap(ErrEmptyImage, "input validation failed")
	}

	decoded, err := p.decodeImage(img.Data)
	if err != nil {
		return nil, errors.Wrap(ErrUndecodableImage, err.Error())
	}
	return p.PreprocessImage(decoded)
}

// PreprocessImage letterboxes and tensorizes an already decoded image.
func (p *Preprocessor) PreprocessImage(img image.Image) (*Result, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Wrapf(ErrEmptyImage, "decoded size %dx%d", bounds.Dx(), bounds.Dy())
	}

	lb := postprocess.Letterbox{
		InputWidth:     p.config.InputWidth,
		InputHeight:    p.config.InputHeight,
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}
	canvas := p.letterbox(img, lb)
	tensor := p.imageToTensor(canvas)
	p.normalize(tensor)

	return &Result{
		Data:      tensor,
		Shape:     []int64{1, 3, int64(p.config.InputHeight), int64(p.config.InputWidth)},
		Letterbox: lb,
		Image:     img,
	}, nil
}

// decodeImage decodes the image and applies its EXIF orientation.
func (p *Preprocessor) decodeImage(data []byte) (image.Image, error) {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		p.bufferPool.Put(buf)
	}()

	buf.Write(data)
	return imaging.Decode(bytes.NewReader(buf.Bytes()), imaging.AutoOrientation(true))
}

// letterbox scales img to fit the input while keeping its aspect ratio and centres it on
// a padded canvas.
func (p *Preprocessor) letterbox(img image.Image, lb postprocess.Letterbox) *image.RGBA {
	scale := lb.Scale()
	newWidth := max(1, int(math.Round(float64(lb.OriginalWidth)*scale)))
	newHeight := max(1, int(math.Round(float64(lb.OriginalHeight)*scale)))

	resized := resize.Resize(uint(newWidth), uint(newHeight), img, p.config.Interpolation)

	padLeft := (p.config.InputWidth - newWidth) / 2
	padTop := (p.config.InputHeight - newHeight) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, p.config.InputWidth, p.config.InputHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: p.config.LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		resized, resized.Bounds().Min, draw.Src)
	return canvas
}

// imageToTensor converts the canvas to a CHW float32 tensor of 0-255 values.
func (p *Preprocessor) imageToTensor(img *image.RGBA) []float32 {
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	plane := width * height
	tensor := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			r := float32(row[x*4])
			g := float32(row[x*4+1])
			b := float32(row[x*4+2])
			if p.config.ColorMode == ColorModeBGR {
				r, b = b, r
			}
			i := y*width + x
			tensor[i] = r
			tensor[plane+i] = g
			tensor[2*plane+i] = b
		}
	}
	return tensor
}

// normalize applies normalization to the tensor in place.
func (p *Preprocessor) normalize(tensor []float32) {
	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range tensor {
			tensor[i] /= 255.0
		}
	case NormalizeStandardize:
		if len(p.config.MeanValues) != 3 || len(p.config.StdValues) != 3 {
			for i := range tensor {
				tensor[i] /= 255.0
			}
			return
		}
		plane := len(tensor) / 3
		for c := 0; c < 3; c++ {
			mean, std := p.config.MeanValues[c], p.config.StdValues[c]
			for i := c * plane; i < (c+1)*plane; i++ {
				tensor[i] = (tensor[i] - mean) / std
			}
		}
	}
}

// YOLOConfig returns the configuration for Ultralytics YOLO detectors: RGB, [0, 1], grey
// letterbox.
//
// Arguments:
// - inputSize: The square input side, DefaultInputSize when <= 0.
//
// Returns:
// - A configured ModelConfig.
func YOLOConfig(inputSize int) ModelConfig {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return ModelConfig{
		Name:              "yolo",
		InputWidth:        inputSize,
		InputHeight:       inputSize,
		NormalizationType: NormalizeZeroToOne,
		ColorMode:         ColorModeRGB,
		LetterboxColor:    PadColor,
		Interpolation:     resize.Bilinear,
	}
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
// - images: Slice of images to preprocess.
// - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
// - Slice of preprocessing results in input order.
// - The first error encountered, if any.
func (p *Preprocessor) BatchPreprocess(images []*Image, maxConcurrency int) ([]*Result, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*Result, len(images))
	errs := make([]error, len(images))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(idx int, image *Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Preprocess(image)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "failed to preprocess image %d", idx)
			} else {
				results[idx] = result
			}
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
