package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cavity/common"
	"github.com/nvr-ai/go-cavity/inference"
)

// syntheticRows builds n detections-major rows of f features with varied values.
func syntheticRows(n, f int) []float32 {
	data := make([]float32, n*f)
	for i := 0; i < n; i++ {
		row := data[i*f : (i+1)*f]
		row[0] = float32(i%10)/10 + 0.05
		row[1] = float32(i/10)/10 + 0.05
		row[2] = 0.05 + float32(i%3)*0.01
		row[3] = 0.04 + float32(i%4)*0.01
		row[4] = float32(i%7) / 7
		for c := 5; c < f; c++ {
			row[c] = float32((i+c)%5) / 5
		}
	}
	return data
}

func transposeRows(rows []float32, n, f int) []float32 {
	out := make([]float32, len(rows))
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			out[j*n+i] = rows[i*f+j]
		}
	}
	return out
}

func TestExtract_FeaturesMajorMatchesDetectionsMajor(t *testing.T) {
	for _, numClasses := range []int{1, 3} {
		n, f := 100, 5+numClasses
		rows := syntheticRows(n, f)

		detMajor := []inference.Tensor{{Name: "output0", Shape: []int64{1, int64(n), int64(f)}, Data: inference.Float32Data(rows)}}
		featMajor := []inference.Tensor{{Name: "output0", Shape: []int64{1, int64(f), int64(n)}, Data: inference.Float32Data(transposeRows(rows, n, f))}}

		l1, err := Classify(detMajor, numClasses)
		require.NoError(t, err)
		l2, err := Classify(featMajor, numClasses)
		require.NoError(t, err)
		assert.IsType(t, DetectionsMajor{}, l1)
		assert.IsType(t, FeaturesMajor{}, l2)

		c1, err := Extract(l1, 640)
		require.NoError(t, err)
		c2, err := Extract(l2, 640)
		require.NoError(t, err)

		require.Len(t, c1, n)
		assert.Equal(t, c1, c2)
	}
}

func TestExtract_FeaturesMajorLeavesOutputUntouched(t *testing.T) {
	rows := syntheticRows(4, 6)
	features := transposeRows(rows, 4, 6)
	original := append([]float32(nil), features...)

	_, err := Extract(FeaturesMajor{
		Output: inference.Tensor{Shape: []int64{1, 6, 4}, Data: inference.Float32Data(features)},
		N:      4, F: 6,
	}, 640)
	require.NoError(t, err)
	assert.Equal(t, original, features)
}

func TestExtract_RowDecoding(t *testing.T) {
	rows := []float32{
		// cx, cy, w, h, objectness, class0, class1
		0.5, 0.5, 0.1, 0.2, 0.9, 0.2, 0.8,
		0.25, 0.25, 0.1, 0.1, 0.5, 0.6, 0.1,
	}
	layout := DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 2, 7}, Data: inference.Float32Data(rows)}, N: 2, F: 7}

	candidates, err := Extract(layout, 640)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, 1, candidates[0].Class)
	assert.InDelta(t, 0.72, candidates[0].Score, 1e-6)
	assert.InDelta(t, 0.45, candidates[0].Box.X, 1e-6)
	assert.InDelta(t, 0.4, candidates[0].Box.Y, 1e-6)
	assert.InDelta(t, 0.1, candidates[0].Box.Width, 1e-6)
	assert.InDelta(t, 0.2, candidates[0].Box.Height, 1e-6)
	assert.Equal(t, 0, candidates[0].Index)

	assert.Equal(t, 0, candidates[1].Class)
	assert.InDelta(t, 0.3, candidates[1].Score, 1e-6)
	assert.Equal(t, 1, candidates[1].Index)
}

func TestExtract_ScoresAreClamped(t *testing.T) {
	rows := []float32{
		0.5, 0.5, 0.1, 0.1, 3, 2,
		0.2, 0.2, 0.1, 0.1, -1, 0.5,
		0.8, 0.8, 0.1, 0.1, 0.5, 0.5,
	}
	layout := DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 3, 6}, Data: inference.Float32Data(rows)}, N: 3, F: 6}

	candidates, err := Extract(layout, 640)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, float32(1), candidates[0].Score)
	assert.Equal(t, float32(0), candidates[1].Score)
	assert.InDelta(t, 0.25, candidates[2].Score, 1e-6)

	pre := PreNMS{
		Boxes:   inference.Tensor{Shape: []int64{1, 2, 4}, Data: inference.Float32Data{0, 0, 0.5, 0.5, 0.5, 0.5, 1, 1}},
		Scores:  inference.Tensor{Shape: []int64{1, 2}, Data: inference.Float32Data{7.5, -0.2}},
		Classes: inference.Tensor{Shape: []int64{1, 2}, Data: inference.Float32Data{0, 0}},
		Count:   inference.Tensor{Shape: []int64{1}, Data: inference.Float32Data{2}},
		N:       2,
	}
	candidates, err = Extract(pre, 640)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, float32(1), candidates[0].Score)
	assert.Equal(t, float32(0), candidates[1].Score)
}

func TestExtract_PixelUnitHeuristic(t *testing.T) {
	tests := []struct {
		name      string
		row       []float32
		expectedX float32
		expectedW float32
	}{
		{
			name:      "normalized box is kept",
			row:       []float32{0.5, 0.5, 0.1, 0.1, 1, 1},
			expectedX: 0.45,
			expectedW: 0.1,
		},
		{
			name:      "pixel box is divided by canvas size",
			row:       []float32{320, 320, 64, 64, 1, 1},
			expectedX: 0.45,
			expectedW: 0.1,
		},
		{
			name:      "exactly one is normalized",
			row:       []float32{1, 1, 1, 1, 1, 1},
			expectedX: 0.5,
			expectedW: 0.5,
		},
		{
			name:      "one pixel component scales the whole slot",
			row:       []float32{0.5, 0.5, 64, 0.1, 1, 1},
			expectedX: 0,
			expectedW: 0.05078125,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 1, 6}, Data: inference.Float32Data(tt.row)}, N: 1, F: 6}

			candidates, err := Extract(layout, 640)
			require.NoError(t, err)
			require.Len(t, candidates, 1)
			assert.InDelta(t, tt.expectedX, candidates[0].Box.X, 1e-5)
			assert.InDelta(t, tt.expectedW, candidates[0].Box.Width, 1e-5)
		})
	}
}

func TestExtract_Quantized(t *testing.T) {
	// scale 1/100, zero point 10: 60 -> 0.5, 20 -> 0.1, 110 -> 1.0.
	quant := &inference.QuantParams{Scale: 0.01, ZeroPoint: 10}
	values := []uint8{60, 60, 20, 20, 110, 110}
	layout := DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 1, 6}, Data: inference.Uint8Data{Values: values, Quant: quant}}, N: 1, F: 6}

	candidates, err := Extract(layout, 640)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.45, candidates[0].Box.X, 1e-5)
	assert.InDelta(t, 0.1, candidates[0].Box.Width, 1e-5)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-5)

	layout.Output.Data = inference.Uint8Data{Values: values}
	_, err = Extract(layout, 640)
	assert.ErrorIs(t, err, common.ErrMissingQuantization)
}

func TestExtract_PreNMS(t *testing.T) {
	outputs := []inference.Tensor{
		{Name: "boxes", Shape: []int64{1, 3, 4}, Data: inference.Float32Data{
			0.1, 0.1, 0.3, 0.4,
			64, 64, 128, 192,
			0.5, 0.5, 0.6, 0.6,
		}},
		{Name: "classes", Shape: []int64{1, 3}, Data: inference.Int64Data{2, 0, 1}},
		{Name: "scores", Shape: []int64{1, 3}, Data: inference.Float32Data{0.9, 0.7, 0.8}},
		{Name: "count", Shape: []int64{1}, Data: inference.Int64Data{2}},
	}

	layout, err := Classify(outputs, 3)
	require.NoError(t, err)

	candidates, err := Extract(layout, 640)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "only count slots are read")

	assert.Equal(t, 2, candidates[0].Class)
	assert.InDelta(t, 0.9, candidates[0].Score, 1e-6)
	assert.InDelta(t, 0.1, candidates[0].Box.X, 1e-6)
	assert.InDelta(t, 0.2, candidates[0].Box.Width, 1e-6)
	assert.InDelta(t, 0.3, candidates[0].Box.Height, 1e-6)

	assert.Equal(t, 0, candidates[1].Class)
	assert.InDelta(t, 0.1, candidates[1].Box.X, 1e-6)
	assert.InDelta(t, 0.2, candidates[1].Box.Height, 1e-6)
}

func TestExtract_PreNMSCountIsClamped(t *testing.T) {
	layout := PreNMS{
		Boxes:   inference.Tensor{Shape: []int64{1, 1, 4}, Data: inference.Float32Data{0, 0, 0.5, 0.5}},
		Scores:  inference.Tensor{Shape: []int64{1, 1}, Data: inference.Float32Data{0.9}},
		Classes: inference.Tensor{Shape: []int64{1, 1}, Data: inference.Float32Data{0}},
		Count:   inference.Tensor{Shape: []int64{1}, Data: inference.Float32Data{7}},
		N:       1,
	}

	candidates, err := Extract(layout, 640)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	layout.Count.Data = inference.Float32Data{-3}
	candidates, err = Extract(layout, 640)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtract_InvalidInputs(t *testing.T) {
	_, err := Extract(DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 1, 6}, Data: inference.Float32Data{1, 2, 3, 4, 5, 6}}, N: 1, F: 6}, 0)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = Extract(DetectionsMajor{Output: inference.Tensor{Shape: []int64{1, 2, 6}, Data: inference.Float32Data(make([]float32, 12))}, N: 3, F: 6}, 640)
	assert.ErrorIs(t, err, common.ErrUnsupportedOutputShape)
}
