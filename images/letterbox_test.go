package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cavity/common"
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

func isBlack(c color.NRGBA) bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

func isRed(c color.NRGBA) bool {
	return c.R > 245 && c.G < 10 && c.B < 10
}

func TestNewGeometry(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		size     int
		expected Geometry
	}{
		{
			name: "landscape pads top and bottom",
			w:    1000, h: 500, size: 640,
			expected: Geometry{CanvasSize: 640, DrawOffsetX: 0, DrawOffsetY: 160, DrawWidth: 640, DrawHeight: 320, SourceWidth: 1000, SourceHeight: 500},
		},
		{
			name: "portrait pads left and right",
			w:    500, h: 1000, size: 640,
			expected: Geometry{CanvasSize: 640, DrawOffsetX: 160, DrawOffsetY: 0, DrawWidth: 320, DrawHeight: 640, SourceWidth: 500, SourceHeight: 1000},
		},
		{
			name: "square has no padding",
			w:    320, h: 320, size: 640,
			expected: Geometry{CanvasSize: 640, DrawWidth: 640, DrawHeight: 640, SourceWidth: 320, SourceHeight: 320},
		},
		{
			name: "extreme aspect keeps one pixel",
			w:    4000, h: 1, size: 640,
			expected: Geometry{CanvasSize: 640, DrawOffsetY: 319, DrawWidth: 640, DrawHeight: 1, SourceWidth: 4000, SourceHeight: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGeometry(tt.w, tt.h, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, g)
		})
	}
}

func TestNewGeometry_Errors(t *testing.T) {
	_, err := NewGeometry(0, 100, 640)
	assert.ErrorIs(t, err, common.ErrImageDecode)

	_, err = NewGeometry(100, 100, 0)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLetterbox_Landscape(t *testing.T) {
	boxed, err := Letterbox(solidImage(1000, 500, color.RGBA{255, 0, 0, 255}), 640, nil)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 640, 640), boxed.Canvas.Bounds())
	assert.Equal(t, image.Rect(0, 160, 640, 480), boxed.Geometry.DrawRect())

	assert.True(t, isBlack(boxed.Canvas.NRGBAAt(320, 10)), "top band should be padding")
	assert.True(t, isBlack(boxed.Canvas.NRGBAAt(320, 630)), "bottom band should be padding")
	assert.True(t, isRed(boxed.Canvas.NRGBAAt(320, 320)), "centre should be image content")
	assert.True(t, isRed(boxed.Canvas.NRGBAAt(5, 320)), "left edge should be image content")
}

func TestLetterbox_Portrait(t *testing.T) {
	boxed, err := Letterbox(solidImage(500, 1000, color.RGBA{255, 0, 0, 255}), 640, nil)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(160, 0, 480, 640), boxed.Geometry.DrawRect())

	assert.True(t, isBlack(boxed.Canvas.NRGBAAt(10, 320)), "left band should be padding")
	assert.True(t, isBlack(boxed.Canvas.NRGBAAt(630, 320)), "right band should be padding")
	assert.True(t, isRed(boxed.Canvas.NRGBAAt(320, 320)), "centre should be image content")
	assert.True(t, isRed(boxed.Canvas.NRGBAAt(320, 5)), "top edge should be image content")
}

func TestLetterbox_CustomFill(t *testing.T) {
	gray := color.NRGBA{114, 114, 114, 255}
	boxed, err := Letterbox(solidImage(1000, 500, color.White), 64, gray)
	require.NoError(t, err)

	assert.Equal(t, gray, boxed.Canvas.NRGBAAt(32, 2))
}

func TestLetterbox_InvalidImages(t *testing.T) {
	_, err := Letterbox(nil, 640, nil)
	assert.ErrorIs(t, err, common.ErrImageDecode)

	_, err = Letterbox(image.NewRGBA(image.Rect(0, 0, 0, 10)), 640, nil)
	assert.ErrorIs(t, err, common.ErrImageDecode)
}

func TestPreprocess_CHW(t *testing.T) {
	p := NewPreprocessor(DefaultPreprocessConfig(64))

	result, err := p.Preprocess(solidImage(100, 50, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 64, 64}, result.Shape)
	require.Len(t, result.Data, 3*64*64)
	assert.Equal(t, 16, result.Geometry.DrawOffsetY)

	plane := 64 * 64
	centre := 32*64 + 32
	assert.InDelta(t, 1.0, result.Data[centre], 0.02, "red plane")
	assert.InDelta(t, 0.0, result.Data[plane+centre], 0.02, "green plane")
	assert.InDelta(t, 0.0, result.Data[2*plane+centre], 0.02, "blue plane")

	padding := 2*64 + 32
	assert.Equal(t, float32(0), result.Data[padding])

	for _, v := range result.Data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocess_HWCAndBGR(t *testing.T) {
	cfg := DefaultPreprocessConfig(32)
	cfg.ChannelOrder = ChannelOrderHWC
	cfg.ColorMode = ColorModeBGR
	p := NewPreprocessor(cfg)

	result, err := p.Preprocess(solidImage(32, 32, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 32, 32, 3}, result.Shape)
	px := (16*32 + 16) * 3
	assert.InDelta(t, 0.0, result.Data[px], 0.02, "blue first")
	assert.InDelta(t, 1.0, result.Data[px+2], 0.02, "red last")
}

func TestPreprocess_MinusOneToOne(t *testing.T) {
	cfg := DefaultPreprocessConfig(16)
	cfg.NormalizationType = NormalizeMinusOneToOne
	p := NewPreprocessor(cfg)

	result, err := p.Preprocess(solidImage(16, 8, color.White))
	require.NoError(t, err)

	assert.InDelta(t, -1.0, result.Data[0], 1e-6, "padding maps to -1")
	assert.InDelta(t, 1.0, result.Data[8*16+8], 0.02, "white maps to 1")
}
