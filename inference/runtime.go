// Package inference - The inference runtime boundary.
package inference

import "context"

// Input is a preprocessed model input.
type Input struct {
	// Data is the normalized float32 input in row-major order.
	Data []float32
	// Shape is the input shape, e.g. [1, 3, 640, 640].
	Shape []int64
}

// Runtime executes a detection model.
//
// Implementations own any accelerator or provider selection. Run must return
// the output tensors in the model's declared output order and must be safe for
// concurrent use, serializing internally if the backend is not.
type Runtime interface {
	Run(ctx context.Context, input Input) ([]Tensor, error)
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, input Input) ([]Tensor, error)

// Run calls f(ctx, input).
func (f RuntimeFunc) Run(ctx context.Context, input Input) ([]Tensor, error) {
	return f(ctx, input)
}
