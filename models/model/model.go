// Package model - Model metadata shipped next to the network weights.
package model

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/inference"
)

// Format is the output convention the model was exported with.
type Format string

const (
	// FormatYOLO is the YOLO single-tensor (or exporter NMS) output convention.
	FormatYOLO Format = "yolo"
)

// Default file names inside a model directory.
const (
	ConfigFileName = "config.json"
	LabelsFileName = "labels.txt"
)

// Info describes a packaged detection model.
//
// The file is JSON as written by the export tooling; it is parsed with yaml.v3,
// of which JSON is a subset, so hand-written YAML configs load as well.
type Info struct {
	// ModelName identifies the model, e.g. "aviScan-YOLOv11n-v1.0".
	ModelName string `json:"model_name" yaml:"model_name"`
	// Version is the model release version.
	Version string `json:"version" yaml:"version"`
	// InputSize is the [width, height] of the model input.
	InputSize []int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of per-class scores in each detection slot.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ClassNames maps class ids to labels.
	ClassNames []string `json:"class_names" yaml:"class_names"`
	// ConfidenceThreshold is the recommended confidence cut.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold is the recommended NMS overlap cut.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Format is the output convention.
	Format Format `json:"format" yaml:"format"`
	// Precision is the weight precision, informational.
	Precision inference.Precision `json:"precision,omitempty" yaml:"precision,omitempty"`
	// Quantization holds per-output scale/zero-point for quantized exports.
	Quantization map[string]inference.QuantParams `json:"quantization,omitempty" yaml:"quantization,omitempty"`
}

// ID returns "name@version", or just the name when no version is set.
func (i *Info) ID() string {
	if i.Version == "" {
		return i.ModelName
	}
	return i.ModelName + "@" + i.Version
}

// CanvasSize returns the square input side length.
//
// Returns:
//   - int: The side length.
//   - error: A common.KindInvalidConfig error if the input is not square.
func (i *Info) CanvasSize() (int, error) {
	switch len(i.InputSize) {
	case 1:
		return i.InputSize[0], nil
	case 2:
		if i.InputSize[0] != i.InputSize[1] {
			return 0, common.Errorf(common.KindInvalidConfig, "model", "letterboxing needs a square input, got %v", i.InputSize)
		}
		return i.InputSize[0], nil
	}
	return 0, common.Errorf(common.KindInvalidConfig, "model", "input_size must have one or two entries, got %v", i.InputSize)
}

// Classes returns the label set built from ClassNames.
func (i *Info) Classes() *ClassSet {
	return NewClassSet(i.ClassNames...)
}

// Validate checks the metadata is usable for decoding.
func (i *Info) Validate() error {
	if i.NumClasses < 1 {
		return common.Errorf(common.KindInvalidConfig, "model", "num_classes must be positive, got %d", i.NumClasses)
	}
	if len(i.ClassNames) > 0 && len(i.ClassNames) != i.NumClasses {
		return common.Errorf(common.KindInvalidConfig, "model",
			"%d class names for %d classes", len(i.ClassNames), i.NumClasses)
	}
	if i.Format != "" && i.Format != FormatYOLO {
		return common.Errorf(common.KindInvalidConfig, "model", "unsupported format %q", i.Format)
	}
	if i.ConfidenceThreshold < 0 || i.ConfidenceThreshold > 1 || i.IoUThreshold < 0 || i.IoUThreshold > 1 {
		return common.Errorf(common.KindInvalidConfig, "model", "thresholds must lie in [0, 1]")
	}
	if len(i.InputSize) > 0 {
		if _, err := i.CanvasSize(); err != nil {
			return err
		}
	}
	return nil
}

// LoadInfo reads and validates a model config file.
//
// When the config lists no class names and a labels.txt sits next to it, the
// labels file supplies them.
//
// Arguments:
//   - path: Path to config.json.
//
// Returns:
//   - *Info: The parsed metadata.
//   - error: A common.KindInvalidConfig error on read, parse or validation failure.
func LoadInfo(path string) (*Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, common.E(common.KindInvalidConfig, "model", err)
	}

	info := &Info{}
	if err := yaml.Unmarshal(raw, info); err != nil {
		return nil, common.E(common.KindInvalidConfig, "model", err)
	}

	if len(info.ClassNames) == 0 {
		labels := filepath.Join(filepath.Dir(path), LabelsFileName)
		if _, err := os.Stat(labels); err == nil {
			set, err := LoadLabels(labels)
			if err != nil {
				return nil, err
			}
			info.ClassNames = set.Names()
		}
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}
