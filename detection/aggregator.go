// Package detection - Turning suppressed candidates into findings.
package detection

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-cavity/models/postprocess"
)

// Labeler names class ids.
type Labeler interface {
	GetName(idx int) string
}

// Aggregator builds Detection records from suppressed candidates.
type Aggregator struct {
	// Thresholds classify each finding.
	Thresholds Thresholds
	// MaxDetections caps the result; 0 means no cap.
	MaxDetections int
	// Labels names class ids; nil leaves labels empty.
	Labels Labeler
	// Now stamps CreatedAt; nil uses time.Now.
	Now func() time.Time
	// NewID generates Detection ids; nil uses uuid.New.
	NewID func() uuid.UUID
}

// Aggregate converts NMS survivors into Detections.
//
// Zero-area boxes are dropped, then the highest-confidence MaxDetections
// survivors are kept. Truncation belongs after suppression, so callers must
// pass the output of NMS, not raw candidates.
//
// Arguments:
//   - candidates: The NMS output, boxes in original-image space.
//   - meta: Metadata copied into every Detection.
//
// Returns:
//   - []Detection: The findings by descending confidence.
func (a *Aggregator) Aggregate(candidates []postprocess.Candidate, meta Metadata) []Detection {
	kept := make([]postprocess.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Box.IsDegenerate() {
			kept = append(kept, c)
		}
	}
	kept = postprocess.TopK(kept, a.MaxDetections)

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	newID := uuid.New
	if a.NewID != nil {
		newID = a.NewID
	}

	created := now()
	detections := make([]Detection, len(kept))
	for i, c := range kept {
		d := Detection{
			ID:         newID(),
			Box:        c.Box,
			Confidence: c.Score,
			ClassID:    c.Class,
			Severity:   a.Thresholds.Classify(c.Score, c.Box.Area()),
			CreatedAt:  created,
			Metadata:   meta,
		}
		if a.Labels != nil {
			d.Label = a.Labels.GetName(c.Class)
		}
		detections[i] = d
	}
	return detections
}
