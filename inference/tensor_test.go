package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/nvr-ai/go-cavity/common"
)

func TestNormalize(t *testing.T) {
	half := func(v float32) uint16 { return float16.Fromfloat32(v).Bits() }

	tests := []struct {
		name     string
		tensor   Tensor
		expected []float32
	}{
		{
			name:     "float32 passes through",
			tensor:   Tensor{Shape: []int64{1, 3}, Data: Float32Data{0.1, 0.5, 0.9}},
			expected: []float32{0.1, 0.5, 0.9},
		},
		{
			name:     "float16 widens",
			tensor:   Tensor{Shape: []int64{3}, Data: Float16Data{half(0.5), half(-2), half(0.25)}},
			expected: []float32{0.5, -2, 0.25},
		},
		{
			name:     "int64 converts",
			tensor:   Tensor{Shape: []int64{}, Data: Int64Data{7}},
			expected: []float32{7},
		},
		{
			name: "uint8 dequantizes",
			tensor: Tensor{Shape: []int64{3}, Data: Uint8Data{
				Values: []uint8{128, 138, 0},
				Quant:  &QuantParams{Scale: 0.1, ZeroPoint: 128},
			}},
			expected: []float32{0, 1, -12.8},
		},
		{
			name: "int8 dequantizes",
			tensor: Tensor{Shape: []int64{2}, Data: Int8Data{
				Values: []int8{-128, 127},
				Quant:  &QuantParams{Scale: 1.0 / 255, ZeroPoint: -128},
			}},
			expected: []float32{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Normalize(tt.tensor)
			require.NoError(t, err)
			require.Len(t, values, len(tt.expected))
			for i := range values {
				assert.InDelta(t, tt.expected[i], values[i], 1e-5)
			}
		})
	}
}

func TestNormalize_MissingQuantization(t *testing.T) {
	for _, data := range []Data{
		Uint8Data{Values: []uint8{1}},
		Int8Data{Values: []int8{1}},
	} {
		_, err := Normalize(Tensor{Name: "output0", Shape: []int64{1}, Data: data})
		assert.ErrorIs(t, err, common.ErrMissingQuantization)
		assert.True(t, data.Precision().Quantized())
	}
}

func TestNormalize_ShapeMismatch(t *testing.T) {
	_, err := Normalize(Tensor{Shape: []int64{1, 4}, Data: Float32Data{1, 2}})
	assert.ErrorIs(t, err, common.ErrUnsupportedOutputShape)

	_, err = Normalize(Tensor{Shape: []int64{1}})
	assert.ErrorIs(t, err, common.ErrUnsupportedOutputShape)
}

func TestParsePrecision(t *testing.T) {
	p, ok := ParsePrecision(" fp16 ")
	assert.True(t, ok)
	assert.Equal(t, PrecisionFP16, p)
	assert.False(t, p.Quantized())

	_, ok = ParsePrecision("fp8")
	assert.False(t, ok)
}

func TestRuntimeFunc(t *testing.T) {
	var rt Runtime = RuntimeFunc(func(_ context.Context, in Input) ([]Tensor, error) {
		return []Tensor{{Shape: in.Shape, Data: Float32Data(in.Data)}}, nil
	})

	out, err := rt.Run(context.Background(), Input{Data: []float32{1}, Shape: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, Float32Data{1}, out[0].Data)
}

func TestSharedLibPath(t *testing.T) {
	path, err := SharedLibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", path)

	t.Setenv(LibraryPathEnv, "/env/libonnxruntime.so")
	path, err = SharedLibPath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/libonnxruntime.so", path)
}

func TestNewONNXRuntime_ConfigErrors(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("onnx"), 0o600))

	tests := []struct {
		name string
		cfg  SessionConfig
	}{
		{name: "empty model path", cfg: SessionConfig{}},
		{name: "missing model", cfg: SessionConfig{ModelPath: filepath.Join(t.TempDir(), "absent.onnx")}},
		{name: "bad optimization level", cfg: SessionConfig{ModelPath: model, GraphOptimizationLevel: "turbo"}},
		{name: "unknown provider", cfg: SessionConfig{ModelPath: model, Provider: "tpu"}},
		{name: "missing library", cfg: SessionConfig{ModelPath: model, LibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewONNXRuntime(tt.cfg)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestParseGraphOptimizationLevel(t *testing.T) {
	for _, name := range []string{"", "disable", "basic", "extended", "ALL"} {
		_, err := ParseGraphOptimizationLevel(name)
		assert.NoError(t, err, name)
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		name     string
		expected Provider
	}{
		{name: "", expected: ProviderCPU},
		{name: "cpu", expected: ProviderCPU},
		{name: " CUDA ", expected: ProviderCUDA},
		{name: "CoreML", expected: ProviderCoreML},
		{name: "openvino", expected: ProviderOpenVINO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProvider(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}

	_, err := ParseProvider("tpu")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
