package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Box
		r2       Box
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical boxes",
			r1:       Box{0, 0, 0.1, 0.1},
			r2:       Box{0, 0, 0.1, 0.1},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       Box{0, 0, 0.1, 0.1},
			r2:       Box{0.2, 0.2, 0.1, 0.1},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       Box{0, 0, 0.1, 0.1},
			r2:       Box{0.1, 0, 0.1, 0.1},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Half overlap",
			r1:       Box{0, 0, 0.1, 0.1},
			r2:       Box{0.05, 0.05, 0.1, 0.1},
			expected: 0.142857, // 0.0025 / (0.01+0.01-0.0025)
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       Box{0, 0, 0.1, 0.1},
			r2:       Box{0.025, 0.025, 0.05, 0.05},
			expected: 0.25,
			epsilon:  0.001,
		},
		{
			name:     "Degenerate box",
			r1:       Box{0.5, 0.5, 0, 0},
			r2:       Box{0.5, 0.5, 0, 0},
			expected: 0.0,
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, float64(tt.epsilon))

			// IoU(A, B) should equal IoU(B, A)
			reverse := CalculateIoU(tt.r2, tt.r1)
			assert.InDelta(t, result, reverse, float64(tt.epsilon), "IoU not symmetric")
		})
	}
}

// TestNewBox_ClampingIsTotal checks the box invariants hold for any input.
func TestNewBox_ClampingIsTotal(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	values := []float32{-inf, -2, -0.5, -0.0001, 0, 0.25, 0.5, 0.9999, 1, 1.5, 640, inf, nan}

	for _, x := range values {
		for _, y := range values {
			for _, w := range values {
				for _, h := range values {
					b := NewBox(x, y, w, h)
					for _, v := range []float32{b.X, b.Y, b.Width, b.Height} {
						assert.False(t, math.IsNaN(float64(v)))
						assert.GreaterOrEqual(t, v, float32(0))
						assert.LessOrEqual(t, v, float32(1))
					}
					assert.LessOrEqual(t, b.X+b.Width, float32(1))
					assert.LessOrEqual(t, b.Y+b.Height, float32(1))
				}
			}
		}
	}
}

func TestNewBox_ClipsAsCorners(t *testing.T) {
	b := NewBox(-0.1, 0.5, 0.3, 0.8)

	assert.InDelta(t, 0, b.X, 1e-6)
	assert.InDelta(t, 0.5, b.Y, 1e-6)
	assert.InDelta(t, 0.2, b.Width, 1e-6)
	assert.InDelta(t, 0.5, b.Height, 1e-6)
}

func TestBoxFromCenter(t *testing.T) {
	b := BoxFromCenter(0.5, 0.5, 0.1, 0.2)

	assert.InDelta(t, 0.45, b.X, 1e-6)
	assert.InDelta(t, 0.4, b.Y, 1e-6)
	assert.InDelta(t, 0.02, b.Area(), 1e-6)

	cx, cy := b.Center()
	assert.InDelta(t, 0.5, cx, 1e-6)
	assert.InDelta(t, 0.5, cy, 1e-6)
	assert.False(t, b.IsDegenerate())
	assert.True(t, Box{X: 0.3, Y: 0.3}.IsDegenerate())
}

func TestBox_PixelRect(t *testing.T) {
	b := Box{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}

	assert.Equal(t, image.Rect(250, 250, 750, 375), b.PixelRect(1000, 500))
}
