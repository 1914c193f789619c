package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero right", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.IsNaN(got) {
				t.Fatalf("CosineSimilarity returned NaN")
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_selfIsOne(t *testing.T) {
	vectors := [][]float32{
		{0.3, -0.7, 12.5},
		{1e-3, 1e-3},
		{-4},
	}
	for _, v := range vectors {
		if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-6 {
			t.Errorf("CosineSimilarity(v, v) = %f for %v", got, v)
		}
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); math.Abs(got-5) > 1e-9 {
		t.Errorf("L2Norm = %f, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil) = %f", got)
	}
}
