// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-cavity/images"

// Candidate represents a single detection before suppression.
type Candidate struct {
	// The bounding box, in model space until mapped with MapToImage.
	Box images.Box
	// The confidence score (objectness times class score).
	Score float32
	// The predicted class index.
	Class int
	// The slot the candidate was extracted from; breaks confidence ties.
	Index int
}

// MapToImage converts every candidate box from canvas space to original-image space.
//
// It must run before any filtering, so boxes that reach into the letterbox
// padding are clipped rather than lost.
//
// Arguments:
//   - candidates: The extracted candidates; modified in place.
//   - geometry: The letterbox geometry of the image the candidates came from.
//
// Returns:
//   - []Candidate: The same slice, for chaining.
func MapToImage(candidates []Candidate, geometry images.Geometry) []Candidate {
	for i := range candidates {
		candidates[i].Box = geometry.ToImage(candidates[i].Box)
	}
	return candidates
}
