// Package postprocess - Output format classification.
package postprocess

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/inference"
)

// Layout is the decoding strategy chosen for a set of runtime outputs.
//
// It is one of DetectionsMajor, FeaturesMajor or PreNMS; each variant carries
// the tensors and dimensions its decoder reads.
type Layout interface {
	// Name returns a short identifier for logs.
	Name() string

	layout()
}

// DetectionsMajor is a single [1, N, F] tensor, one row of F features per slot.
type DetectionsMajor struct {
	Output inference.Tensor
	// N is the number of detection slots.
	N int
	// F is 5 + numClasses: cx, cy, w, h, objectness, class scores.
	F int
}

// FeaturesMajor is a single [1, F, N] tensor, the transpose of DetectionsMajor.
type FeaturesMajor struct {
	Output inference.Tensor
	N      int
	F      int
}

// PreNMS is the multi-tensor output of a model exported with its own NMS.
type PreNMS struct {
	// Boxes is [1, N, 4] in corner form x1, y1, x2, y2.
	Boxes inference.Tensor
	// Scores is [1, N].
	Scores inference.Tensor
	// Classes is [1, N].
	Classes inference.Tensor
	// Count is a scalar or 1-length tensor holding the number of valid slots.
	Count inference.Tensor
	N     int
}

func (DetectionsMajor) Name() string { return "detections-major" }
func (FeaturesMajor) Name() string   { return "features-major" }
func (PreNMS) Name() string          { return "pre-nms" }

func (DetectionsMajor) layout() {}
func (FeaturesMajor) layout()   {}
func (PreNMS) layout()          {}

// Classify selects the decoding strategy from the output shapes.
//
// Classification is purely shape-driven so a model with a different class
// count decodes unchanged. Three or more outputs are first matched against the
// pre-NMS layout; otherwise the first rank-3 output is matched against the
// single-tensor layouts, where the non-batch dimension equal to 5+numClasses is
// the feature axis. When both dimensions equal it the tensor is read
// detections-major.
//
// Arguments:
//   - outputs: The runtime outputs in declaration order.
//   - numClasses: The number of classes the model predicts.
//
// Returns:
//   - Layout: The selected strategy.
//   - error: common.KindUnsupportedOutputShape when nothing matches, or
//     common.KindInvalidConfig for a non-positive class count.
func Classify(outputs []inference.Tensor, numClasses int) (Layout, error) {
	if numClasses < 1 {
		return nil, common.Errorf(common.KindInvalidConfig, "classify", "num classes must be positive, got %d", numClasses)
	}
	if len(outputs) == 0 {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "classify", "runtime returned no outputs")
	}

	if len(outputs) >= 3 {
		if l, ok := classifyPreNMS(outputs); ok {
			return l, nil
		}
	}

	f := 5 + numClasses
	for _, t := range outputs {
		if len(t.Shape) != 3 || t.Shape[0] != 1 {
			continue
		}
		a, b := int(t.Shape[1]), int(t.Shape[2])
		switch {
		case b == f:
			return DetectionsMajor{Output: t, N: a, F: f}, nil
		case a == f:
			return FeaturesMajor{Output: t, N: b, F: f}, nil
		}
	}

	return nil, common.Errorf(common.KindUnsupportedOutputShape, "classify",
		"no output matches %d features (5 + %d classes): %s", f, numClasses, describeShapes(outputs))
}

// classifyPreNMS matches boxes [1,N,4], scores [1,N], classes [1,N] and a count.
//
// Scores and classes share a shape, so they are told apart by name and
// otherwise by declaration order, scores first.
func classifyPreNMS(outputs []inference.Tensor) (PreNMS, bool) {
	boxes, count := -1, -1
	var pairs []int

	for i, t := range outputs {
		s := t.Shape
		switch {
		case boxes < 0 && len(s) == 3 && s[0] == 1 && s[2] == 4:
			boxes = i
		case count < 0 && len(s) <= 1 && t.Elements() == 1:
			count = i
		case len(s) == 2 && s[0] == 1:
			pairs = append(pairs, i)
		}
	}
	if boxes < 0 {
		return PreNMS{}, false
	}
	n := outputs[boxes].Shape[1]

	var matching []int
	for _, i := range pairs {
		switch {
		case outputs[i].Shape[1] == n:
			matching = append(matching, i)
		case count < 0 && outputs[i].Shape[1] == 1:
			// [1, 1] count, as exported by TFLite detection postprocessing.
			count = i
		}
	}
	if count < 0 && n == 1 && len(matching) > 2 {
		count, matching = pickCount(outputs, matching)
	}
	if count < 0 || len(matching) < 2 {
		return PreNMS{}, false
	}

	scores, classes := -1, -1
	for _, i := range matching {
		name := strings.ToLower(outputs[i].Name)
		switch {
		case classes < 0 && (strings.Contains(name, "class") || strings.Contains(name, "label")):
			classes = i
		case scores < 0 && (strings.Contains(name, "score") || strings.Contains(name, "conf")):
			scores = i
		}
	}
	for _, i := range matching {
		if i == scores || i == classes {
			continue
		}
		if scores < 0 {
			scores = i
		} else if classes < 0 {
			classes = i
		}
	}

	return PreNMS{
		Boxes:   outputs[boxes],
		Scores:  outputs[scores],
		Classes: outputs[classes],
		Count:   outputs[count],
		N:       int(n),
	}, true
}

// pickCount separates a [1,1] count from single-slot score and class
// tensors of the same shape. A name hint wins, otherwise the last one.
func pickCount(outputs []inference.Tensor, matching []int) (int, []int) {
	pick := len(matching) - 1
	for j, i := range matching {
		name := strings.ToLower(outputs[i].Name)
		if strings.Contains(name, "num") || strings.Contains(name, "count") || strings.Contains(name, "detections") {
			pick = j
			break
		}
	}
	count := matching[pick]
	rest := make([]int, 0, len(matching)-1)
	rest = append(rest, matching[:pick]...)
	rest = append(rest, matching[pick+1:]...)
	return count, rest
}

func describeShapes(outputs []inference.Tensor) string {
	parts := make([]string, len(outputs))
	for i, t := range outputs {
		parts[i] = fmt.Sprintf("%s%v", t.Name, t.Shape)
	}
	return strings.Join(parts, ", ")
}
