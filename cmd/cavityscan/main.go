// Command cavityscan runs the cavity detection pipeline over photos and prints
// the results as JSON.
//
//	cavityscan -model cavity.onnx -image molar.jpg
//	cavityscan -model cavity.onnx -dir ./captures -concurrency 4 -progress
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v2"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-cavity/detection"
	"github.com/nvr-ai/go-cavity/detector"
	"github.com/nvr-ai/go-cavity/inference"
	"github.com/nvr-ai/go-cavity/models/model"
	"github.com/nvr-ai/go-cavity/util"
)

const (
	// DefaultModelPath is the exported detection model.
	DefaultModelPath = "cavity.onnx"
	// DefaultConcurrency is the number of photos analyzed at once in -dir mode.
	DefaultConcurrency = 2
)

type options struct {
	imagePath   string
	dirPath     string
	modelPath   string
	infoPath    string
	configPath  string
	libPath     string
	provider    string
	logLevel    string
	concurrency int
	cacheTTL    time.Duration
	progress    bool
	stats       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.imagePath, "image", "", "Path to a photo (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&opts.dirPath, "dir", "", "Directory of photos to analyze")
	flag.StringVar(&opts.modelPath, "model", DefaultModelPath, "Path to the ONNX detection model")
	flag.StringVar(&opts.infoPath, "model-info", "", "Model config.json (default: config.json next to the model, if present)")
	flag.StringVar(&opts.configPath, "config", "", "Pipeline YAML config")
	flag.StringVar(&opts.libPath, "lib", "", "onnxruntime shared library (default: $"+inference.LibraryPathEnv+" or ./third_party)")
	flag.StringVar(&opts.provider, "provider", "cpu", "Execution provider (cpu, cuda, coreml, openvino)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.IntVar(&opts.concurrency, "concurrency", DefaultConcurrency, "Photos analyzed at once in -dir mode")
	flag.DurationVar(&opts.cacheTTL, "cache-ttl", 0, "Reuse results for identical photos for this long (0 disables)")
	flag.BoolVar(&opts.progress, "progress", false, "Show a progress bar in -dir mode")
	flag.BoolVar(&opts.stats, "stats", false, "Log per-stage timings when done")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(opts, logger, os.Stdout); err != nil {
		logger.WithError(err).Fatal("cavityscan failed")
	}
}

func run(opts options, logger *logrus.Logger, out io.Writer) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if err := validateInputFlags(opts.imagePath, opts.dirPath); err != nil {
		return err
	}

	cfg, info, err := loadConfig(opts)
	if err != nil {
		return err
	}

	sessionCfg := inference.SessionConfig{
		ModelPath:   opts.modelPath,
		LibraryPath: opts.libPath,
		Provider:    opts.provider,
	}
	labels := model.CavityClasses
	if info != nil {
		sessionCfg.Quantization = info.Quantization
		if len(info.ClassNames) > 0 {
			labels = info.Classes()
		}
	}

	rt, err := inference.NewONNXRuntime(sessionCfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.WithFields(logrus.Fields{
		"model":       opts.modelPath,
		"model_id":    cfg.ModelID,
		"canvas_size": cfg.CanvasSize,
		"num_classes": cfg.NumClasses,
		"input_shape": rt.InputShape(),
		"outputs":     rt.OutputNames(),
	}).Info("model loaded")

	d, err := detector.New(rt, cfg,
		detector.WithLogger(logger),
		detector.WithLabels(labels),
		detector.WithResultCache(opts.cacheTTL),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.imagePath != "" {
		err = scanImage(ctx, d, opts.imagePath, labels, out)
	} else {
		err = scanDirectory(ctx, d, opts, labels, logger, out)
	}

	if opts.stats {
		logStats(logger, d, rt)
	}
	return err
}

// loadConfig builds the pipeline config from the defaults, the model
// metadata and the optional YAML file, in that order. Values set in the YAML
// file win over the model's.
func loadConfig(opts options) (detector.Config, *model.Info, error) {
	cfg := detector.DefaultConfig()

	infoPath := opts.infoPath
	if infoPath == "" {
		candidate := filepath.Join(filepath.Dir(opts.modelPath), model.ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			infoPath = candidate
		}
	}

	var info *model.Info
	if infoPath != "" {
		var err error
		if info, err = model.LoadInfo(infoPath); err != nil {
			return cfg, nil, err
		}
		if err := cfg.ApplyModelInfo(info); err != nil {
			return cfg, nil, err
		}
	}

	if opts.configPath != "" {
		if err := cfg.Overlay(opts.configPath); err != nil {
			return cfg, nil, err
		}
	}
	return cfg, info, cfg.Validate()
}

func scanImage(ctx context.Context, d *detector.Detector, path string, labels *model.ClassSet, out io.Writer) error {
	file, err := util.LoadImageFile(path)
	if err != nil {
		return err
	}
	result, err := d.Analyze(ctx, detector.Request{ID: file.ID(), Image: file.Image()})
	if err != nil {
		return err
	}
	return writeJSON(out, newReport(file.ID(), result, labels))
}

func scanDirectory(ctx context.Context, d *detector.Detector, opts options, labels *model.ClassSet, logger *logrus.Logger, out io.Writer) error {
	files, err := util.LoadDirectoryImageFiles(opts.dirPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no photos found in %s", opts.dirPath)
	}

	requests := make([]detector.Request, len(files))
	for i, f := range files {
		requests[i] = detector.Request{ID: f.ID(), Image: f.Image()}
	}

	var onDone func(detector.BatchResult)
	if opts.progress {
		bar := progressbar.NewOptions(len(requests),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetRenderBlankState(true),
		)
		onDone = func(detector.BatchResult) { _ = bar.Add(1) }
		defer func() {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}()
	}

	results := d.AnalyzeBatchFunc(ctx, requests, opts.concurrency, onDone)

	failed := 0
	urgent := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Result.Summary.Urgency >= detection.UrgencyUrgent {
			urgent++
		}
	}
	logger.WithFields(logrus.Fields{
		"photos": len(results),
		"failed": failed,
		"urgent": urgent,
	}).Info("directory scan complete")

	return writeJSON(out, newBatchReports(results, labels))
}

func logStats(logger *logrus.Logger, d *detector.Detector, rt *inference.ONNXRuntime) {
	for stage, s := range d.Stats() {
		logger.WithFields(logrus.Fields{
			"stage":   stage,
			"count":   s.Count,
			"average": s.Average(),
			"min":     s.Min,
			"max":     s.Max,
		}).Info("stage timings")
	}
	logger.WithFields(logrus.Fields(rt.GetPerformanceMetrics())).Info("runtime metrics")
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// validateInputFlags checks exactly one input is given and that it exists.
func validateInputFlags(imagePath, dirPath string) error {
	if imagePath != "" && dirPath != "" {
		return errors.New("cannot specify both -image and -dir")
	}
	if imagePath == "" && dirPath == "" {
		return errors.New("one of -image or -dir is required")
	}

	if imagePath != "" {
		return errors.Wrap(validateFile(imagePath), "image validation error")
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		return errors.Wrap(err, "directory validation error")
	}
	if !info.IsDir() {
		return errors.Errorf("not a directory: %s", dirPath)
	}
	return nil
}

// validateFile checks if the file exists and has a supported extension.
func validateFile(filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Errorf("file not found: %s", filePath)
	}

	ext := filepath.Ext(filePath)
	if _, ok := util.FormatForExt(ext); !ok {
		return errors.Errorf("unsupported file extension: %s. Supported extensions: .jpg, .jpeg, .png, .webp", ext)
	}
	return nil
}
