// Package inference - ONNX Runtime sessions.
package inference

import (
	"context"
	"encoding/binary"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-cavity/common"
)

// SessionConfig configures an ONNXRuntime.
type SessionConfig struct {
	// ModelPath is the path to the .onnx model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the onnxruntime shared library; see SharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// GraphOptimizationLevel is one of "disable", "basic", "extended" or "all".
	GraphOptimizationLevel string `json:"graph_optimization_level" yaml:"graph_optimization_level"`
	// IntraOpNumThreads sets threads for parallelizing ops (0 lets the runtime decide).
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
	// Provider is the execution provider, "cpu" (default), "cuda", "coreml" or "openvino".
	Provider string `json:"provider" yaml:"provider"`
	// ProviderOptions are passed to the execution provider as key/value settings.
	ProviderOptions map[string]string `json:"provider_options" yaml:"provider_options"`
	// Quantization maps quantized output names to their parameters. onnxruntime
	// does not expose output quantization, so it comes from the model config.
	Quantization map[string]QuantParams `json:"quantization" yaml:"quantization"`
}

// ParseGraphOptimizationLevel converts a level name to the onnxruntime constant.
//
// An empty name selects the extended level.
func ParseGraphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disable", "none":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", "extended":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	}
	return 0, common.Errorf(common.KindInvalidConfig, "session", "unknown graph optimization level %q", name)
}

// ONNXRuntime runs a model through onnxruntime and tracks run metrics.
//
// Output tensors are allocated by onnxruntime on every run, so models with
// dynamic output shapes (such as a variable candidate count) work unchanged.
// Runs are serialized on one session.
type ONNXRuntime struct {
	session        *ort.DynamicAdvancedSession
	inputs         []ort.InputOutputInfo
	outputs        []ort.InputOutputInfo
	quant          map[string]QuantParams
	inferenceCount int64
	totalTime      float64
	mu             sync.RWMutex
}

var envMu sync.Mutex

// NewONNXRuntime loads a model into a new onnxruntime session.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *ONNXRuntime: The runtime, to be released with Close.
//   - error: common.KindInvalidConfig for a missing model or library, and
//     common.KindInferenceRuntime if onnxruntime fails to load it.
func NewONNXRuntime(cfg SessionConfig) (*ONNXRuntime, error) {
	if cfg.ModelPath == "" {
		return nil, common.Errorf(common.KindInvalidConfig, "session", "model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, common.E(common.KindInvalidConfig, "session", err)
	}
	level, err := ParseGraphOptimizationLevel(cfg.GraphOptimizationLevel)
	if err != nil {
		return nil, err
	}
	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	libPath, err := SharedLibPath(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, common.E(common.KindInvalidConfig, "session", errors.Wrapf(err, "onnxruntime library not found at %s", libPath))
	}

	if err := initializeEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, common.E(common.KindInferenceRuntime, "session", errors.Wrap(err, "reading model io info"))
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, common.Errorf(common.KindInferenceRuntime, "session",
			"expected one input and at least one output, got %d and %d", len(inputs), len(outputs))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, common.E(common.KindInferenceRuntime, "session", errors.Wrap(err, "creating session options"))
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return nil, common.E(common.KindInferenceRuntime, "session", err)
	}
	if cfg.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpNumThreads); err != nil {
			return nil, common.E(common.KindInferenceRuntime, "session", err)
		}
	}
	if cfg.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(cfg.InterOpNumThreads); err != nil {
			return nil, common.E(common.KindInferenceRuntime, "session", err)
		}
	}

	if err := appendProvider(options, provider, cfg.ProviderOptions); err != nil {
		return nil, common.E(common.KindInferenceRuntime, "session", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, names(inputs), names(outputs), options)
	if err != nil {
		return nil, common.E(common.KindInferenceRuntime, "session", errors.Wrap(err, "creating ONNX session"))
	}

	return &ONNXRuntime{
		session: session,
		inputs:  inputs,
		outputs: outputs,
		quant:   cfg.Quantization,
	}, nil
}

func initializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return common.E(common.KindInferenceRuntime, "session", errors.Wrap(err, "initializing ORT environment"))
	}
	return nil
}

func names(infos []ort.InputOutputInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

// OutputNames returns the model output names in declaration order.
func (r *ONNXRuntime) OutputNames() []string {
	return names(r.outputs)
}

// InputShape returns the declared model input shape; dynamic dimensions are -1.
func (r *ONNXRuntime) InputShape() []int64 {
	return append([]int64(nil), r.inputs[0].Dimensions...)
}

// Run executes the model with performance tracking.
//
// Arguments:
//   - ctx: Checked before the run starts; onnxruntime runs are not interruptible.
//   - input: The preprocessed input.
//
// Returns:
//   - []Tensor: The outputs in declaration order, copied out of native memory.
//   - error: common.KindInferenceRuntime on any runtime failure.
func (r *ONNXRuntime) Run(ctx context.Context, input Input) ([]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, common.Errorf(common.KindInferenceRuntime, "run", "session is closed")
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, common.E(common.KindInferenceRuntime, "run", errors.Wrap(err, "creating input tensor"))
	}
	defer in.Destroy()

	outputs := make([]ort.Value, len(r.outputs))
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	start := time.Now()
	err = r.session.Run([]ort.Value{in}, outputs)
	r.inferenceCount++
	r.totalTime += float64(time.Since(start).Nanoseconds()) / 1e6
	if err != nil {
		return nil, common.E(common.KindInferenceRuntime, "run", err)
	}

	tensors := make([]Tensor, len(outputs))
	for i, o := range outputs {
		t, err := r.toTensor(r.outputs[i], o)
		if err != nil {
			return nil, err
		}
		tensors[i] = t
	}
	return tensors, nil
}

// toTensor copies an onnxruntime value into a Tensor.
func (r *ONNXRuntime) toTensor(info ort.InputOutputInfo, v ort.Value) (Tensor, error) {
	if v == nil {
		return Tensor{}, common.Errorf(common.KindInferenceRuntime, "run", "output %q was not produced", info.Name)
	}
	t := Tensor{Name: info.Name, Shape: append([]int64(nil), v.GetShape()...)}

	switch o := v.(type) {
	case *ort.Tensor[float32]:
		t.Data = Float32Data(append([]float32(nil), o.GetData()...))
	case *ort.Tensor[int64]:
		t.Data = Int64Data(append([]int64(nil), o.GetData()...))
	case *ort.Tensor[int32]:
		src := o.GetData()
		data := make(Int64Data, len(src))
		for i, x := range src {
			data[i] = int64(x)
		}
		t.Data = data
	case *ort.Tensor[uint8]:
		t.Data = Uint8Data{Values: append([]uint8(nil), o.GetData()...), Quant: r.quantFor(info.Name)}
	case *ort.Tensor[int8]:
		t.Data = Int8Data{Values: append([]int8(nil), o.GetData()...), Quant: r.quantFor(info.Name)}
	case *ort.CustomDataTensor:
		if info.DataType != ort.TensorElementDataTypeFloat16 {
			return Tensor{}, common.Errorf(common.KindInferenceRuntime, "run", "output %q has unsupported element type %v", info.Name, info.DataType)
		}
		raw := o.GetData()
		data := make(Float16Data, len(raw)/2)
		for i := range data {
			data[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		t.Data = data
	default:
		return Tensor{}, common.Errorf(common.KindInferenceRuntime, "run", "output %q has unsupported value %T", info.Name, v)
	}
	return t, nil
}

func (r *ONNXRuntime) quantFor(name string) *QuantParams {
	q, ok := r.quant[name]
	if !ok {
		return nil
	}
	return &q
}

// GetPerformanceMetrics returns run statistics.
//
// Returns:
//   - map[string]interface{}: inference_count, total_time_ms and, after the
//     first run, average_time_ms and throughput_fps.
func (r *ONNXRuntime) GetPerformanceMetrics() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics := map[string]interface{}{
		"inference_count": r.inferenceCount,
		"total_time_ms":   r.totalTime,
	}
	if r.inferenceCount > 0 {
		metrics["average_time_ms"] = r.totalTime / float64(r.inferenceCount)
		metrics["throughput_fps"] = 1000.0 / (r.totalTime / float64(r.inferenceCount))
	}
	return metrics
}

// ResetMetrics clears all performance counters.
func (r *ONNXRuntime) ResetMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inferenceCount = 0
	r.totalTime = 0
}

// Close releases the native session.
func (r *ONNXRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
