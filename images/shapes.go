// Package images - Normalized boxes, letterboxing and coordinate mapping.
package images

import (
	"image"
	"math"

	"github.com/chewxy/math32"
)

// Box is a normalized bounding box.
//
// X, Y is the top-left corner and every component lies in [0, 1] with
// X+Width <= 1 and Y+Height <= 1. A Box is expressed either in model (canvas)
// space or in original-image space; converting between the two goes through
// Geometry.ToImage.
type Box struct {
	X      float32 `json:"x" yaml:"x"`
	Y      float32 `json:"y" yaml:"y"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// NewBox builds a clamped Box from a top-left corner and a size.
//
// Clamping is total: any input, including NaN, negative sizes and coordinates
// outside [0, 1], yields a valid Box. The box is clipped against the unit
// square as corners, so a box hanging off the left edge keeps its right edge.
//
// Arguments:
//   - x, y: The top-left corner.
//   - w, h: The width and height.
//
// Returns:
//   - Box: The clamped box.
//
// Example:
//
// ```go
//
//	b := NewBox(-0.1, 0.5, 0.3, 0.8) // {X: 0, Y: 0.5, Width: 0.2, Height: 0.5}
//
// ```
func NewBox(x, y, w, h float32) Box {
	return BoxFromCorners(x, y, x+w, y+h)
}

// BoxFromCorners builds a clamped Box from corner-form coordinates.
func BoxFromCorners(x1, y1, x2, y2 float32) Box {
	x1, x2 = clamp01(x1), clamp01(x2)
	y1, y2 = clamp01(y1), clamp01(y2)

	b := Box{
		X:      x1,
		Y:      y1,
		Width:  math32.Max(0, x2-x1),
		Height: math32.Max(0, y2-y1),
	}
	if b.X+b.Width > 1 {
		b.Width = 1 - b.X
	}
	if b.Y+b.Height > 1 {
		b.Height = 1 - b.Y
	}
	return b
}

// BoxFromCenter builds a clamped Box from center-form coordinates.
func BoxFromCenter(cx, cy, w, h float32) Box {
	return NewBox(cx-w/2, cy-h/2, w, h)
}

// X2 returns the right edge.
func (b Box) X2() float32 { return b.X + b.Width }

// Y2 returns the bottom edge.
func (b Box) Y2() float32 { return b.Y + b.Height }

// Area returns the normalized area.
func (b Box) Area() float32 {
	return b.Width * b.Height
}

// Center returns the center point.
func (b Box) Center() (cx, cy float32) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// IsDegenerate reports whether the box has zero area.
func (b Box) IsDegenerate() bool {
	return b.Width <= 0 || b.Height <= 0
}

// PixelRect scales the box to a width x height pixel grid.
//
// Arguments:
//   - width: The pixel width of the space the box is normalized against.
//   - height: The pixel height of the space the box is normalized against.
//
// Returns:
//   - image.Rectangle: The canonical pixel rectangle.
func (b Box) PixelRect(width, height int) image.Rectangle {
	fw, fh := float64(width), float64(height)
	return image.Rect(
		int(math.Round(float64(b.X)*fw)),
		int(math.Round(float64(b.Y)*fh)),
		int(math.Round(float64(b.X2())*fw)),
		int(math.Round(float64(b.Y2())*fh)),
	).Canon()
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// The intersection rectangle spans max(top-left) to min(bottom-right); if its
// width or height is zero or negative the boxes do not overlap and the IoU is
// 0. The union uses inclusion-exclusion:
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
// ```go
//
//	a := Box{X: 0, Y: 0, Width: 0.1, Height: 0.1}
//	b := Box{X: 0.05, Y: 0.05, Width: 0.1, Height: 0.1}
//	CalculateIoU(a, b) // 0.0025 / 0.0175 ≈ 0.142857
//
// ```
func CalculateIoU(r, o Box) float32 {
	ix1 := math32.Max(r.X, o.X)
	iy1 := math32.Max(r.Y, o.Y)
	ix2 := math32.Min(r.X2(), o.X2())
	iy2 := math32.Min(r.Y2(), o.Y2())

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}

func clamp01(v float32) float32 {
	switch {
	case math32.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
