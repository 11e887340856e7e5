package images

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/nvr-ai/go-cavity/common"
)

// Geometry records where a source image was drawn on the square model canvas.
//
// It is produced once per image by Letterbox and read by the coordinate mapper;
// every downstream box conversion depends on it, so it is never cached across
// images.
type Geometry struct {
	// CanvasSize is the side length of the square canvas fed to the model.
	CanvasSize int `json:"canvas_size" yaml:"canvas_size"`
	// DrawOffsetX is the left edge of the drawn sub-image in canvas pixels.
	DrawOffsetX int `json:"draw_offset_x" yaml:"draw_offset_x"`
	// DrawOffsetY is the top edge of the drawn sub-image in canvas pixels.
	DrawOffsetY int `json:"draw_offset_y" yaml:"draw_offset_y"`
	// DrawWidth is the width of the drawn sub-image in canvas pixels.
	DrawWidth int `json:"draw_width" yaml:"draw_width"`
	// DrawHeight is the height of the drawn sub-image in canvas pixels.
	DrawHeight int `json:"draw_height" yaml:"draw_height"`
	// SourceWidth is the width of the original image.
	SourceWidth int `json:"source_width" yaml:"source_width"`
	// SourceHeight is the height of the original image.
	SourceHeight int `json:"source_height" yaml:"source_height"`
}

// NewGeometry computes the aspect-preserving placement of a srcWidth x srcHeight
// image on a size x size canvas.
//
// scale = min(size/srcWidth, size/srcHeight); the scaled image is centred and the
// rest of the canvas is padding. Draw sizes are rounded to whole pixels and never
// drop below one pixel, so the recorded rectangle is exactly the one painted.
//
// Arguments:
//   - srcWidth: The source image width.
//   - srcHeight: The source image height.
//   - size: The canvas side length.
//
// Returns:
//   - Geometry: The placement record.
//   - error: A common.KindImageDecode error for a zero-size source, or
//     common.KindInvalidConfig for a non-positive canvas size.
//
// Example:
//
// ```go
//
//	g, _ := NewGeometry(1000, 500, 640)
//	// g.DrawWidth == 640, g.DrawHeight == 320, g.DrawOffsetX == 0, g.DrawOffsetY == 160
//
// ```
func NewGeometry(srcWidth, srcHeight, size int) (Geometry, error) {
	if size <= 0 {
		return Geometry{}, common.Errorf(common.KindInvalidConfig, "letterbox", "canvas size must be positive, got %d", size)
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return Geometry{}, common.Errorf(common.KindImageDecode, "letterbox", "invalid image dimensions: %dx%d", srcWidth, srcHeight)
	}

	s := float64(size)
	scale := math.Min(s/float64(srcWidth), s/float64(srcHeight))

	drawWidth := clampPixels(int(math.Round(float64(srcWidth)*scale)), size)
	drawHeight := clampPixels(int(math.Round(float64(srcHeight)*scale)), size)

	return Geometry{
		CanvasSize:   size,
		DrawOffsetX:  (size - drawWidth) / 2,
		DrawOffsetY:  (size - drawHeight) / 2,
		DrawWidth:    drawWidth,
		DrawHeight:   drawHeight,
		SourceWidth:  srcWidth,
		SourceHeight: srcHeight,
	}, nil
}

// DrawRect returns the canvas rectangle covered by the source image.
func (g Geometry) DrawRect() image.Rectangle {
	return image.Rect(g.DrawOffsetX, g.DrawOffsetY, g.DrawOffsetX+g.DrawWidth, g.DrawOffsetY+g.DrawHeight)
}

// DrawBox returns the drawn sub-image as a normalized box in canvas space.
func (g Geometry) DrawBox() Box {
	s := float32(g.CanvasSize)
	return NewBox(
		float32(g.DrawOffsetX)/s,
		float32(g.DrawOffsetY)/s,
		float32(g.DrawWidth)/s,
		float32(g.DrawHeight)/s,
	)
}

// Letterboxed is a square canvas holding a letterboxed source image.
type Letterboxed struct {
	// Canvas is the size x size RGB canvas.
	Canvas *image.NRGBA
	// Geometry records where the source was drawn.
	Geometry Geometry
}

// Letterbox resizes img onto a size x size canvas preserving aspect ratio.
//
// The image is scaled with Lanczos3 and centred; the uncovered canvas (top and
// bottom bands for landscape sources, left and right bands for portrait ones) is
// filled with fill, or black when fill is nil.
//
// Arguments:
//   - img: The decoded source image.
//   - size: The canvas side length (e.g. 640).
//   - fill: The padding color.
//
// Returns:
//   - *Letterboxed: The canvas and its geometry.
//   - error: A common.KindImageDecode error for a nil or zero-size image.
func Letterbox(img image.Image, size int, fill color.Color) (*Letterboxed, error) {
	if err := validateBounds(img); err != nil {
		return nil, err
	}
	if fill == nil {
		fill = color.Black
	}

	bounds := img.Bounds()
	geom, err := NewGeometry(bounds.Dx(), bounds.Dy(), size)
	if err != nil {
		return nil, err
	}

	resized := resize.Resize(uint(geom.DrawWidth), uint(geom.DrawHeight), img, resize.Lanczos3)

	canvas := imaging.New(size, size, fill)
	canvas = imaging.Paste(canvas, resized, image.Pt(geom.DrawOffsetX, geom.DrawOffsetY))

	return &Letterboxed{
		Canvas:   canvas,
		Geometry: geom,
	}, nil
}

func clampPixels(v, size int) int {
	if v < 1 {
		return 1
	}
	if v > size {
		return size
	}
	return v
}
