package main

import (
	"github.com/nvr-ai/go-cavity/detection"
	"github.com/nvr-ai/go-cavity/detector"
	"github.com/nvr-ai/go-cavity/models/model"
)

// cavityLabel is the class counted in photoReport.Cavities.
const cavityLabel = "cavity"

type pixelBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// finding is a detection with its box in source-image pixels.
type finding struct {
	detection.Detection
	PixelBox pixelBox `json:"pixel_box"`
	Center   point    `json:"center"`
}

// photoReport is the JSON written for one photo.
type photoReport struct {
	ID         string            `json:"id"`
	Detections []finding         `json:"detections"`
	Summary    detection.Summary `json:"summary"`
	Cavities   int               `json:"cavities"`
	Error      string            `json:"error,omitempty"`
}

func newReport(id string, result *detector.Result, labels *model.ClassSet) photoReport {
	r := photoReport{ID: id, Detections: []finding{}}
	if result == nil {
		return r
	}
	r.Summary = result.Summary

	cavityID, err := labels.GetIndex(cavityLabel)
	if err != nil {
		cavityID = -1
	}
	for _, d := range result.Detections {
		rect := d.Box.PixelRect(d.Metadata.Geometry.SourceWidth, d.Metadata.Geometry.SourceHeight)
		cx, cy := d.Box.Center()
		r.Detections = append(r.Detections, finding{
			Detection: d,
			PixelBox:  pixelBox{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()},
			Center:    point{X: cx, Y: cy},
		})
		if d.ClassID == cavityID {
			r.Cavities++
		}
	}
	return r
}

func newBatchReports(results []detector.BatchResult, labels *model.ClassSet) []photoReport {
	reports := make([]photoReport, len(results))
	for i, br := range results {
		reports[i] = newReport(br.ID, br.Result, labels)
		if br.Err != nil {
			reports[i].Error = br.Err.Error()
		}
	}
	return reports
}
