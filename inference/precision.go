// Package inference - Numeric precision of runtime tensors.
package inference

import "strings"

// Precision represents the element precision of a tensor or model.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionUINT8 Precision = "UINT8"
	PrecisionINT8  Precision = "INT8"
	PrecisionINT64 Precision = "INT64"
	PrecisionFP16  Precision = "FP16"
	PrecisionFP32  Precision = "FP32"
)

// ParsePrecision converts a case-insensitive name ("fp16", "int8", ...) to a Precision.
//
// Arguments:
//   - s: The precision name.
//
// Returns:
//   - Precision: The parsed precision.
//   - bool: Whether the name is known.
func ParsePrecision(s string) (Precision, bool) {
	p := Precision(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PrecisionUINT8, PrecisionINT8, PrecisionINT64, PrecisionFP16, PrecisionFP32:
		return p, true
	}
	return "", false
}

// Quantized reports whether tensors of this precision need dequantization.
func (p Precision) Quantized() bool {
	return p == PrecisionINT8 || p == PrecisionUINT8
}
