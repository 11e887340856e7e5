// Package detector - The cavity detection pipeline.
//
// A Detector letterboxes a photo, runs it through an injected inference
// runtime and decodes the outputs into severity-classified findings:
//
//	Preprocess -> Runtime.Run -> Classify -> Extract -> MapToImage ->
//	FilterByConfidence -> ApplyNMS -> Aggregate -> Summarize
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"io"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/detection"
	"github.com/nvr-ai/go-cavity/images"
	"github.com/nvr-ai/go-cavity/inference"
	"github.com/nvr-ai/go-cavity/models/postprocess"
)

// Result is the serializable outcome of one image.
type Result struct {
	Detections []detection.Detection `json:"detections" yaml:"detections"`
	Summary    detection.Summary     `json:"summary" yaml:"summary"`
}

// Request is one submission to Analyze.
type Request struct {
	// ID identifies the capture; at most one request per ID is processed at a time.
	ID string
	// Image is the encoded photo.
	Image *images.Image
}

// Detector runs the cavity detection pipeline.
//
// A Detector is safe for concurrent use: each call keeps its geometry and
// tensors local, and the only shared state is the injected runtime and the
// in-flight request set.
type Detector struct {
	runtime      inference.Runtime
	config       Config
	preprocessor *images.Preprocessor
	nms          *postprocess.NMSConfig
	labels       detection.Labeler
	now          func() time.Time
	logger       logrus.FieldLogger
	results      *cache.Cache
	timer        *stageTimer

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithLabels names class ids in Detection.Label.
func WithLabels(labels detection.Labeler) Option {
	return func(d *Detector) {
		d.labels = labels
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// WithResultCache keeps Analyze results for ttl, keyed by the encoded photo
// bytes, so a resubmitted photo skips inference. Cached results are shared
// between callers and must not be modified.
func WithResultCache(ttl time.Duration) Option {
	return func(d *Detector) {
		if ttl > 0 {
			d.results = cache.New(ttl, 2*ttl)
		}
	}
}

// New creates a Detector around a runtime.
//
// Arguments:
//   - runtime: The inference runtime; it owns accelerator selection.
//   - config: The pipeline configuration.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector.
//   - error: A common.KindInvalidConfig error for a nil runtime or invalid config.
//
// Example:
//
// ```go
//
//	rt, _ := inference.NewONNXRuntime(inference.SessionConfig{ModelPath: "cavity.onnx"})
//	d, err := detector.New(rt, detector.DefaultConfig(), detector.WithLogger(logrus.New()))
//	result, err := d.Detect(ctx, img)
//
// ```
func New(runtime inference.Runtime, config Config, opts ...Option) (*Detector, error) {
	if runtime == nil {
		return nil, common.Errorf(common.KindInvalidConfig, "detector", "runtime is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	pc, err := config.PreprocessConfig()
	if err != nil {
		return nil, err
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	d := &Detector{
		runtime:      runtime,
		config:       config,
		preprocessor: images.NewPreprocessor(pc),
		nms:          config.NMSConfig(),
		now:          time.Now,
		logger:       discard,
		inFlight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.timer = newStageTimer(d.now)
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Detect runs the full pipeline on a decoded image.
//
// The context is checked before preprocessing and again before decoding; a
// decode that has started runs to completion.
//
// Arguments:
//   - ctx: The request context, also passed to the runtime.
//   - img: The decoded photo.
//
// Returns:
//   - *Result: The findings and their summary; zero findings is a valid result.
//   - error: A *common.Error for pipeline failures, or the context error.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	start := d.now()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "detect")
	}

	stop := d.timer.start(StagePreprocess)
	pre, err := d.preprocessor.Preprocess(img)
	stop()
	if err != nil {
		return nil, err
	}

	stop = d.timer.start(StageInference)
	outputs, err := d.runtime.Run(ctx, inference.Input{Data: pre.Data, Shape: pre.Shape})
	stop()
	if err != nil {
		return nil, runtimeError(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "detect")
	}

	stop = d.timer.start(StageDecode)
	defer stop()
	return d.decode(outputs, pre.Geometry, start)
}

// runtimeError keeps typed and context errors and wraps anything else as an
// inference runtime failure.
func runtimeError(err error) error {
	if common.KindOf(err) != common.KindUnknown ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return common.E(common.KindInferenceRuntime, "run", err)
}

// Decode turns raw runtime outputs into findings for an image placed by geometry.
//
// Decode is a pure function of its arguments and the configuration; it
// performs no I/O.
//
// Arguments:
//   - outputs: The runtime outputs in declaration order.
//   - geometry: The letterbox geometry of the input the outputs came from.
//
// Returns:
//   - *Result: The findings and their summary.
//   - error: common.KindUnsupportedOutputShape or common.KindMissingQuantization.
func (d *Detector) Decode(outputs []inference.Tensor, geometry images.Geometry) (*Result, error) {
	return d.decode(outputs, geometry, d.now())
}

func (d *Detector) decode(outputs []inference.Tensor, geometry images.Geometry, start time.Time) (*Result, error) {
	layout, err := postprocess.Classify(outputs, d.config.NumClasses)
	if err != nil {
		return nil, err
	}

	candidates, err := postprocess.Extract(layout, geometry.CanvasSize)
	if err != nil {
		return nil, err
	}
	extracted := len(candidates)

	// Map before filtering so boxes reaching into the padding are clipped, not lost.
	candidates = postprocess.MapToImage(candidates, geometry)
	candidates = postprocess.FilterByConfidence(candidates, d.config.ConfidenceThreshold)
	confident := len(candidates)

	// Exporter NMS is re-run as well; its policy may differ from this one.
	candidates = postprocess.ApplyNMS(candidates, d.nms)

	aggregator := &detection.Aggregator{
		Thresholds:    d.config.Severity,
		MaxDetections: d.config.MaxDetections,
		Labels:        d.labels,
		Now:           d.now,
	}
	detections := aggregator.Aggregate(candidates, detection.Metadata{
		ModelID:            d.config.ModelID,
		ProcessingDuration: d.now().Sub(start),
		Geometry:           geometry,
	})
	summary := detection.Summarize(detections)

	d.logger.WithFields(logrus.Fields{
		"layout":      layout.Name(),
		"canvas_size": geometry.CanvasSize,
		"candidates":  extracted,
		"confident":   confident,
		"kept":        len(detections),
		"urgency":     summary.Urgency.String(),
	}).Debug("decoded detections")

	return &Result{Detections: detections, Summary: summary}, nil
}

// Analyze decodes and detects an encoded photo under single-flight per request ID.
//
// A second submission with the ID of a request still in progress is a caller
// error and fails immediately with common.KindRequestInFlight.
//
// Arguments:
//   - ctx: The request context.
//   - req: The request.
//
// Returns:
//   - *Result: The findings and their summary.
//   - error: common.KindRequestInFlight, common.KindImageDecode, or any Detect error.
func (d *Detector) Analyze(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		return nil, common.Errorf(common.KindInvalidConfig, "analyze", "request id is empty")
	}
	if !d.acquire(req.ID) {
		return nil, common.Errorf(common.KindRequestInFlight, "analyze", "request %q is still being processed", req.ID)
	}
	defer d.release(req.ID)

	logger := d.logger.WithField("request_id", req.ID)

	key := d.cacheKey(req.Image)
	if key != "" {
		if cached, ok := d.results.Get(key); ok {
			logger.Debug("result cache hit")
			return cached.(*Result), nil
		}
	}

	img, err := req.Image.Decode()
	if err != nil {
		logger.WithError(err).Warn("image decode failed")
		return nil, err
	}

	result, err := d.Detect(ctx, img)
	if err != nil {
		logger.WithError(err).Warn("detection failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"detections":  result.Summary.Total,
		"most_severe": result.Summary.MostSevere.String(),
	}).Info("analysis complete")

	if key != "" {
		d.results.SetDefault(key, result)
	}
	return result, nil
}

func (d *Detector) cacheKey(img *images.Image) string {
	if d.results == nil || img == nil || len(img.Data) == 0 {
		return ""
	}
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

func (d *Detector) acquire(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inFlight[id]; busy {
		return false
	}
	d.inFlight[id] = struct{}{}
	return true
}

func (d *Detector) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.inFlight, id)
}
