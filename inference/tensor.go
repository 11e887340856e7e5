// Package inference - Runtime tensors and dequantization.
package inference

import (
	"github.com/x448/float16"

	"github.com/nvr-ai/go-cavity/common"
)

// QuantParams holds the affine quantization of a tensor: real = (q - ZeroPoint) * Scale.
type QuantParams struct {
	Scale     float32 `json:"scale" yaml:"scale"`
	ZeroPoint int32   `json:"zero_point" yaml:"zero_point"`
}

// Dequantize converts one quantized value to float32.
func (q QuantParams) Dequantize(v int32) float32 {
	return float32(v-q.ZeroPoint) * q.Scale
}

// Data is the element storage of a Tensor.
//
// It is one of Float32Data, Float16Data, Int64Data, Int8Data or Uint8Data.
type Data interface {
	// Len returns the number of elements.
	Len() int
	// Precision returns the element precision.
	Precision() Precision
}

// Float32Data holds 32-bit float elements.
type Float32Data []float32

// Float16Data holds IEEE 754 half-precision elements as raw bits.
type Float16Data []uint16

// Int64Data holds 64-bit integer elements, typically class ids or counts.
type Int64Data []int64

// Int8Data holds signed 8-bit quantized elements.
type Int8Data struct {
	Values []int8
	// Quant is nil when the runtime reported no quantization metadata.
	Quant *QuantParams
}

// Uint8Data holds unsigned 8-bit quantized elements.
type Uint8Data struct {
	Values []uint8
	Quant  *QuantParams
}

func (d Float32Data) Len() int { return len(d) }
func (d Float16Data) Len() int { return len(d) }
func (d Int64Data) Len() int   { return len(d) }
func (d Int8Data) Len() int    { return len(d.Values) }
func (d Uint8Data) Len() int   { return len(d.Values) }

func (Float32Data) Precision() Precision { return PrecisionFP32 }
func (Float16Data) Precision() Precision { return PrecisionFP16 }
func (Int64Data) Precision() Precision   { return PrecisionINT64 }
func (Int8Data) Precision() Precision    { return PrecisionINT8 }
func (Uint8Data) Precision() Precision   { return PrecisionUINT8 }

// Tensor is a named output of the inference runtime.
type Tensor struct {
	// Name is the graph output name, if known.
	Name string
	// Shape is the tensor shape, outermost dimension first.
	Shape []int64
	// Data holds the elements in row-major order.
	Data Data
}

// Elements returns the product of the shape dimensions.
func (t Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 1
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Normalize returns the tensor elements as float32 values.
//
// Every stage after inference consumes only the result of Normalize, so all
// precisions funnel through this one conversion. Quantized data is dequantized
// as (v - zeroPoint) * scale; half floats are widened.
//
// Arguments:
//   - t: The runtime tensor.
//
// Returns:
//   - []float32: The elements in row-major order.
//   - error: common.KindMissingQuantization for quantized data without
//     parameters, or common.KindUnsupportedOutputShape when the element count
//     does not match the shape.
//
// Example:
//
// ```go
//
//	t := Tensor{Shape: []int64{2}, Data: Uint8Data{Values: []uint8{128, 138}, Quant: &QuantParams{Scale: 0.1, ZeroPoint: 128}}}
//	values, _ := Normalize(t) // [0, 1]
//
// ```
func Normalize(t Tensor) ([]float32, error) {
	if t.Data == nil {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "normalize", "tensor %q has no data", t.Name)
	}
	if n := t.Elements(); n != int64(t.Data.Len()) {
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "normalize",
			"tensor %q has %d elements, shape %v implies %d", t.Name, t.Data.Len(), t.Shape, n)
	}

	switch d := t.Data.(type) {
	case Float32Data:
		return []float32(d), nil
	case Float16Data:
		out := make([]float32, len(d))
		for i, bits := range d {
			out[i] = float16.Frombits(bits).Float32()
		}
		return out, nil
	case Int64Data:
		out := make([]float32, len(d))
		for i, v := range d {
			out[i] = float32(v)
		}
		return out, nil
	case Int8Data:
		if d.Quant == nil {
			return nil, common.Errorf(common.KindMissingQuantization, "normalize", "tensor %q is INT8 without scale/zero-point", t.Name)
		}
		out := make([]float32, len(d.Values))
		for i, v := range d.Values {
			out[i] = d.Quant.Dequantize(int32(v))
		}
		return out, nil
	case Uint8Data:
		if d.Quant == nil {
			return nil, common.Errorf(common.KindMissingQuantization, "normalize", "tensor %q is UINT8 without scale/zero-point", t.Name)
		}
		out := make([]float32, len(d.Values))
		for i, v := range d.Values {
			out[i] = d.Quant.Dequantize(int32(v))
		}
		return out, nil
	default:
		return nil, common.Errorf(common.KindUnsupportedOutputShape, "normalize", "tensor %q has unsupported data %T", t.Name, t.Data)
	}
}
