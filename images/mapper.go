package images

// ToImage maps a canvas-space box onto the original image.
//
// The letterbox offset and draw size are expressed as canvas fractions, the
// offset is subtracted and the result divided by the draw fraction. Coordinates
// relative to the drawn sub-image are already normalized to the original image,
// because the sub-image corresponds 1:1 to the source after the forward scale.
// Boxes that reach into the padding are clipped, never discarded.
//
// Arguments:
//   - b: A box in canvas (model) space.
//
// Returns:
//   - Box: The box in original-image space. A geometry with no drawn area maps
//     every box to the zero box.
//
// Example:
//
// ```go
//
//	g, _ := NewGeometry(1000, 500, 640) // offsetY = 160, drawHeight = 320
//	g.ToImage(Box{X: 0.45, Y: 0.45, Width: 0.1, Height: 0.1})
//	// {X: 0.45, Y: 0.4, Width: 0.1, Height: 0.2}
//
// ```
func (g Geometry) ToImage(b Box) Box {
	if g.CanvasSize <= 0 || g.DrawWidth <= 0 || g.DrawHeight <= 0 {
		return Box{}
	}

	s := float64(g.CanvasSize)
	offX := float64(g.DrawOffsetX) / s
	offY := float64(g.DrawOffsetY) / s
	drawW := float64(g.DrawWidth) / s
	drawH := float64(g.DrawHeight) / s

	x := (float64(b.X) - offX) / drawW
	y := (float64(b.Y) - offY) / drawH
	w := float64(b.Width) / drawW
	h := float64(b.Height) / drawH

	return NewBox(float32(x), float32(y), float32(w), float32(h))
}

// toCanvas maps an original-image box onto the canvas, the inverse of ToImage.
func (g Geometry) toCanvas(b Box) Box {
	if g.CanvasSize <= 0 {
		return Box{}
	}

	s := float64(g.CanvasSize)
	drawW := float64(g.DrawWidth) / s
	drawH := float64(g.DrawHeight) / s

	return NewBox(
		float32(float64(b.X)*drawW+float64(g.DrawOffsetX)/s),
		float32(float64(b.Y)*drawH+float64(g.DrawOffsetY)/s),
		float32(float64(b.Width)*drawW),
		float32(float64(b.Height)*drawH),
	)
}
