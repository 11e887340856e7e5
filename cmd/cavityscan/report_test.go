package main

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cavity/detection"
	"github.com/nvr-ai/go-cavity/detector"
	"github.com/nvr-ai/go-cavity/images"
	"github.com/nvr-ai/go-cavity/models/model"
)

func testResult() *detector.Result {
	meta := detection.Metadata{Geometry: images.Geometry{SourceWidth: 1000, SourceHeight: 500}}
	dets := []detection.Detection{
		{Box: images.Box{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}, Confidence: 0.9, ClassID: 0, Label: "cavity", Severity: detection.SeveritySevere, Metadata: meta},
		{Box: images.Box{X: 0, Y: 0, Width: 0.1, Height: 0.2}, Confidence: 0.55, ClassID: 1, Label: "normal", Severity: detection.SeverityMild, Metadata: meta},
	}
	return &detector.Result{Detections: dets, Summary: detection.Summarize(dets)}
}

func TestNewReport(t *testing.T) {
	r := newReport("molar", testResult(), model.CavityClasses)

	assert.Equal(t, "molar", r.ID)
	assert.Equal(t, 1, r.Cavities)
	assert.Equal(t, 2, r.Summary.Total)
	require.Len(t, r.Detections, 2)

	assert.Equal(t, pixelBox{X: 250, Y: 250, Width: 500, Height: 125}, r.Detections[0].PixelBox)
	assert.InDelta(t, 0.5, r.Detections[0].Center.X, 1e-6)
	assert.InDelta(t, 0.625, r.Detections[0].Center.Y, 1e-6)
	assert.Equal(t, pixelBox{X: 0, Y: 0, Width: 100, Height: 100}, r.Detections[1].PixelBox)
}

func TestNewReport_LabelsWithoutCavity(t *testing.T) {
	r := newReport("molar", testResult(), model.NewClassSet("caries", "healthy"))

	assert.Equal(t, 0, r.Cavities)
	assert.Len(t, r.Detections, 2)
}

func TestNewReport_JSON(t *testing.T) {
	raw, err := json.Marshal(newReport("molar", testResult(), model.CavityClasses))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "molar", decoded["id"])
	assert.NotContains(t, decoded, "error")

	dets, ok := decoded["detections"].([]interface{})
	require.True(t, ok)
	first, ok := dets[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cavity", first["label"])
	assert.Equal(t, "severe", first["severity"])
	assert.Contains(t, first, "pixel_box")
	assert.Contains(t, first, "box")
}

func TestNewBatchReports(t *testing.T) {
	reports := newBatchReports([]detector.BatchResult{
		{ID: "a", Result: testResult()},
		{ID: "b", Err: errors.New("decode failed")},
	}, model.CavityClasses)

	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Cavities)
	assert.Empty(t, reports[0].Error)
	assert.Equal(t, "b", reports[1].ID)
	assert.Equal(t, "decode failed", reports[1].Error)
	assert.Empty(t, reports[1].Detections)
}
