package images

import (
	"image"
	"image/color"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne NormalizationType = iota
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone
	// NormalizeMinusOneToOne scales pixel values to [-1, 1].
	NormalizeMinusOneToOne
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering (common for TFLite).
	ChannelOrderHWC
)

// ColorMode defines the channel order of color components.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV-trained models).
	ColorModeBGR
)

// PreprocessConfig defines the input layout expected by the inference runtime.
type PreprocessConfig struct {
	// CanvasSize is the side length of the square model input.
	CanvasSize int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// ChannelOrder defines the tensor layout (CHW or HWC).
	ChannelOrder ChannelOrder
	// ColorMode defines the channel order of color components.
	ColorMode ColorMode
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color
}

// DefaultPreprocessConfig returns the 3-channel, 0-1 float, RGB, CHW layout.
func DefaultPreprocessConfig(canvasSize int) PreprocessConfig {
	return PreprocessConfig{
		CanvasSize:        canvasSize,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		LetterboxColor:    color.Black,
	}
}

// PreprocessingResult contains the model input tensor and its geometry.
type PreprocessingResult struct {
	// Data is the preprocessed float32 tensor data.
	Data []float32
	// Shape is the tensor shape, [1, 3, S, S] for CHW or [1, S, S, 3] for HWC.
	Shape []int64
	// Geometry records where the source was drawn on the canvas.
	Geometry Geometry
	// Canvas is the letterboxed image the tensor was packed from.
	Canvas *image.NRGBA
}

// Preprocessor converts decoded photos into model input tensors.
//
// A Preprocessor holds only its configuration and is safe for concurrent use.
type Preprocessor struct {
	config PreprocessConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The input layout configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//
// Example:
//
// ```go
//
//	p := NewPreprocessor(DefaultPreprocessConfig(640))
//	result, err := p.Preprocess(img)
//
// ```
func NewPreprocessor(config PreprocessConfig) *Preprocessor {
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}
	return &Preprocessor{config: config}
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() PreprocessConfig {
	return p.config
}

// Preprocess letterboxes img and packs the canvas into a float32 tensor.
//
// Arguments:
//   - img: The decoded source image.
//
// Returns:
//   - *PreprocessingResult: The tensor, its shape and the letterbox geometry.
//   - error: A common.KindImageDecode error for a nil or zero-size image.
func (p *Preprocessor) Preprocess(img image.Image) (*PreprocessingResult, error) {
	boxed, err := Letterbox(img, p.config.CanvasSize, p.config.LetterboxColor)
	if err != nil {
		return nil, err
	}

	size := int64(p.config.CanvasSize)
	shape := []int64{1, 3, size, size}
	if p.config.ChannelOrder == ChannelOrderHWC {
		shape = []int64{1, size, size, 3}
	}

	return &PreprocessingResult{
		Data:     p.imageToTensor(boxed.Canvas),
		Shape:    shape,
		Geometry: boxed.Geometry,
		Canvas:   boxed.Canvas,
	}, nil
}

// imageToTensor converts the canvas to a normalized float32 tensor.
func (p *Preprocessor) imageToTensor(canvas *image.NRGBA) []float32 {
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	tensor := make([]float32, plane*3)

	idx := 0
	for y := 0; y < height; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]

			ch0, ch1, ch2 := p.normalize(px[0]), p.normalize(px[1]), p.normalize(px[2])
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch2 = ch2, ch0
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				i := y*width + x
				tensor[i] = ch0
				tensor[plane+i] = ch1
				tensor[2*plane+i] = ch2
			} else {
				tensor[idx] = ch0
				tensor[idx+1] = ch1
				tensor[idx+2] = ch2
				idx += 3
			}
		}
	}

	return tensor
}

func (p *Preprocessor) normalize(v uint8) float32 {
	switch p.config.NormalizationType {
	case NormalizeNone:
		return float32(v)
	case NormalizeMinusOneToOne:
		return float32(v)/127.5 - 1.0
	default:
		return float32(v) / 255.0
	}
}
