// Package detection - Final cavity findings.
package detection

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-cavity/images"
)

// Metadata describes how a Detection was produced.
type Metadata struct {
	// ModelID identifies the model, e.g. "aviScan-YOLOv11n-v1.0@1.0.0".
	ModelID string `json:"model_id" yaml:"model_id"`
	// ProcessingDuration covers preprocessing, inference and decoding.
	ProcessingDuration time.Duration `json:"processing_duration" yaml:"processing_duration"`
	// Geometry echoes the letterbox placement of the source image.
	Geometry images.Geometry `json:"geometry" yaml:"geometry"`
	// Extra holds caller-supplied annotations.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Detection is a surviving finding in original-image space.
//
// Detections are created by an Aggregator and not modified afterwards.
type Detection struct {
	ID         uuid.UUID  `json:"id" yaml:"id"`
	Box        images.Box `json:"box" yaml:"box"`
	Confidence float32    `json:"confidence" yaml:"confidence"`
	ClassID    int        `json:"class_id" yaml:"class_id"`
	Label      string     `json:"label" yaml:"label"`
	Severity   Severity   `json:"severity" yaml:"severity"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	Metadata   Metadata   `json:"metadata" yaml:"metadata"`
}
