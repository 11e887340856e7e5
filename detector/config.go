// Package detector - Pipeline configuration.
package detector

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/detection"
	"github.com/nvr-ai/go-cavity/images"
	"github.com/nvr-ai/go-cavity/models/model"
	"github.com/nvr-ai/go-cavity/models/postprocess"
)

// Config configures the decoding pipeline.
type Config struct {
	// ModelID is recorded in every Detection's metadata.
	ModelID string `json:"model_id" yaml:"model_id"`
	// CanvasSize is the square model input side length.
	CanvasSize int `json:"canvas_size" yaml:"canvas_size"`
	// NumClasses is the number of per-class scores per detection slot.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ConfidenceThreshold drops candidates scoring below it; equal scores are kept.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold is the NMS overlap above which the weaker box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// MaxDetections caps the result after suppression.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// Severity holds the severity cut points.
	Severity detection.Thresholds `json:"severity" yaml:"severity"`
	// ClassAgnosticNMS suppresses overlapping boxes across classes.
	ClassAgnosticNMS bool `json:"class_agnostic_nms" yaml:"class_agnostic_nms"`
	// NMSWorkers processes class partitions concurrently when above 1.
	NMSWorkers int `json:"nms_workers" yaml:"nms_workers"`
	// ChannelOrder is the runtime input layout, "chw" or "hwc".
	ChannelOrder string `json:"channel_order" yaml:"channel_order"`
	// ColorMode is the runtime input channel order, "rgb" or "bgr".
	ColorMode string `json:"color_mode" yaml:"color_mode"`
}

// DefaultConfig returns the 640px, 0.5 confidence, 0.4 IoU, 10 detection defaults.
func DefaultConfig() Config {
	return Config{
		CanvasSize:          640,
		NumClasses:          model.CavityClasses.Len(),
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.4,
		MaxDetections:       10,
		Severity:            detection.DefaultThresholds(),
		NMSWorkers:          1,
		ChannelOrder:        "chw",
		ColorMode:           "rgb",
	}
}

// LoadConfig reads a YAML config file over the defaults.
//
// Arguments:
//   - path: The YAML file; keys that are absent keep their default.
//
// Returns:
//   - Config: The validated configuration.
//   - error: A common.KindInvalidConfig error on read, parse or validation failure.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.Overlay(path); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Overlay reads the YAML file at path on top of c. Keys absent from the file
// keep their current values. The result is not validated.
func (c *Config) Overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return common.E(common.KindInvalidConfig, "config", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return common.E(common.KindInvalidConfig, "config", err)
	}
	return nil
}

// ApplyModelInfo copies the model's input size, class count, thresholds and
// identity into the config. Zero thresholds in the model info are ignored.
func (c *Config) ApplyModelInfo(info *model.Info) error {
	if info == nil {
		return nil
	}
	if err := info.Validate(); err != nil {
		return err
	}
	if len(info.InputSize) > 0 {
		size, err := info.CanvasSize()
		if err != nil {
			return err
		}
		c.CanvasSize = size
	}
	c.NumClasses = info.NumClasses
	if info.ConfidenceThreshold > 0 {
		c.ConfidenceThreshold = info.ConfidenceThreshold
	}
	if info.IoUThreshold > 0 {
		c.IoUThreshold = info.IoUThreshold
	}
	if id := info.ID(); id != "" {
		c.ModelID = id
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.CanvasSize <= 0:
		return common.Errorf(common.KindInvalidConfig, "config", "canvas_size must be positive, got %d", c.CanvasSize)
	case c.NumClasses < 1:
		return common.Errorf(common.KindInvalidConfig, "config", "num_classes must be positive, got %d", c.NumClasses)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return common.Errorf(common.KindInvalidConfig, "config", "confidence_threshold must lie in [0, 1], got %v", c.ConfidenceThreshold)
	case c.IoUThreshold < 0 || c.IoUThreshold > 1:
		return common.Errorf(common.KindInvalidConfig, "config", "iou_threshold must lie in [0, 1], got %v", c.IoUThreshold)
	case c.MaxDetections < 0:
		return common.Errorf(common.KindInvalidConfig, "config", "max_detections must not be negative, got %d", c.MaxDetections)
	}
	if err := c.Severity.Validate(); err != nil {
		return err
	}
	if _, err := c.PreprocessConfig(); err != nil {
		return err
	}
	return nil
}

// PreprocessConfig returns the letterbox and tensor layout for the runtime input.
func (c Config) PreprocessConfig() (images.PreprocessConfig, error) {
	pc := images.DefaultPreprocessConfig(c.CanvasSize)

	switch strings.ToLower(c.ChannelOrder) {
	case "", "chw":
		pc.ChannelOrder = images.ChannelOrderCHW
	case "hwc":
		pc.ChannelOrder = images.ChannelOrderHWC
	default:
		return pc, common.Errorf(common.KindInvalidConfig, "config", "unknown channel_order %q", c.ChannelOrder)
	}

	switch strings.ToLower(c.ColorMode) {
	case "", "rgb":
		pc.ColorMode = images.ColorModeRGB
	case "bgr":
		pc.ColorMode = images.ColorModeBGR
	default:
		return pc, common.Errorf(common.KindInvalidConfig, "config", "unknown color_mode %q", c.ColorMode)
	}
	return pc, nil
}

// NMSConfig returns the suppression settings.
func (c Config) NMSConfig() *postprocess.NMSConfig {
	return &postprocess.NMSConfig{
		IoUThreshold: c.IoUThreshold,
		ClassAware:   !c.ClassAgnosticNMS,
		NumWorkers:   c.NMSWorkers,
	}
}
