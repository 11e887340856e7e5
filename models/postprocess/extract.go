// Package postprocess - Candidate extraction from raw model outputs.
package postprocess

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/images"
	"github.com/nvr-ai/go-cavity/inference"
)

// Extract walks the chosen layout and returns every candidate, unfiltered.
//
// Single-tensor layouts read cx, cy, w, h, objectness and the class scores per
// slot; the best class score times objectness is the confidence. Pre-NMS
// layouts read corner-form boxes for the first count slots. In every layout a
// slot whose box has a component above 1 in magnitude is taken to be in canvas
// pixels and divided by canvasSize.
//
// Arguments:
//   - layout: The strategy returned by Classify.
//   - canvasSize: The side length of the model input canvas.
//
// Returns:
//   - []Candidate: The candidates in model space, in slot order.
//   - error: common.KindMissingQuantization for quantized outputs without
//     parameters, common.KindUnsupportedOutputShape for inconsistent tensors.
func Extract(layout Layout, canvasSize int) ([]Candidate, error) {
	if canvasSize <= 0 {
		return nil, common.Errorf(common.KindInvalidConfig, "extract", "canvas size must be positive, got %d", canvasSize)
	}

	switch l := layout.(type) {
	case DetectionsMajor:
		data, err := inference.Normalize(l.Output)
		if err != nil {
			return nil, err
		}
		return extractRows(data, l.N, l.F, float32(canvasSize))
	case FeaturesMajor:
		data, err := inference.Normalize(l.Output)
		if err != nil {
			return nil, err
		}
		rows, err := transpose(data, l.F, l.N)
		if err != nil {
			return nil, err
		}
		return extractRows(rows, l.N, l.F, float32(canvasSize))
	case PreNMS:
		return extractPreNMS(l, float32(canvasSize))
	default:
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "extract", "unknown layout %T", layout)
	}
}

// extractRows decodes n rows of f features each.
func extractRows(data []float32, n, f int, canvas float32) ([]Candidate, error) {
	if f < 6 || len(data) != n*f {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "extract",
			"expected %d x %d values, got %d", n, f, len(data))
	}

	candidates := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		row := data[i*f : (i+1)*f]

		class, best := 0, row[5]
		for c := 1; c < f-5; c++ {
			if row[5+c] > best {
				class, best = c, row[5+c]
			}
		}

		box := toUnit([4]float32{row[0], row[1], row[2], row[3]}, canvas)
		candidates = append(candidates, Candidate{
			Box:   images.BoxFromCenter(box[0], box[1], box[2], box[3]),
			Score: clampScore(row[4] * best),
			Class: class,
			Index: i,
		})
	}
	return candidates, nil
}

func extractPreNMS(l PreNMS, canvas float32) ([]Candidate, error) {
	boxes, err := inference.Normalize(l.Boxes)
	if err != nil {
		return nil, err
	}
	scores, err := inference.Normalize(l.Scores)
	if err != nil {
		return nil, err
	}
	classes, err := inference.Normalize(l.Classes)
	if err != nil {
		return nil, err
	}
	count, err := inference.Normalize(l.Count)
	if err != nil {
		return nil, err
	}
	if len(boxes) != 4*l.N || len(scores) != l.N || len(classes) != l.N || len(count) != 1 {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "extract", "pre-nms tensors disagree on %d slots", l.N)
	}

	valid := int(math.Round(float64(count[0])))
	if valid < 0 || math.IsNaN(float64(count[0])) {
		valid = 0
	}
	if valid > l.N {
		valid = l.N
	}

	candidates := make([]Candidate, 0, valid)
	for i := 0; i < valid; i++ {
		c := toUnit([4]float32{boxes[4*i], boxes[4*i+1], boxes[4*i+2], boxes[4*i+3]}, canvas)
		candidates = append(candidates, Candidate{
			Box:   images.BoxFromCorners(c[0], c[1], c[2], c[3]),
			Score: clampScore(scores[i]),
			Class: int(math.Round(float64(classes[i]))),
			Index: i,
		})
	}
	return candidates, nil
}

// clampScore bounds s to [0, 1]. NaN is passed through for the confidence
// filter to drop.
func clampScore(s float32) float32 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// toUnit divides the box by the canvas size when any component is in pixels.
func toUnit(b [4]float32, canvas float32) [4]float32 {
	for _, v := range b {
		if math32.Abs(v) > 1 {
			return [4]float32{b[0] / canvas, b[1] / canvas, b[2] / canvas, b[3] / canvas}
		}
	}
	return b
}

// transpose turns f x n features-major data into n x f rows.
func transpose(data []float32, f, n int) ([]float32, error) {
	if len(data) != f*n {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "extract",
			"expected %d x %d values, got %d", f, n, len(data))
	}
	if n == 1 {
		return data, nil
	}

	backing := make([]float32, len(data))
	copy(backing, data)

	t := tensor.New(tensor.WithShape(f, n), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transposing features-major output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "transposing features-major output")
	}

	rows, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected transposed data %T", t.Data())
	}
	return rows, nil
}
