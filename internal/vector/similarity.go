package vector

import "math"

// InnerProduct returns the inner product of two vectors. Mismatched or empty vectors give 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (|a||b|) in [-1, 1]. It returns 0 when either vector
// has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA, normB := L2Norm(a), L2Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return InnerProduct(a, b) / (normA * normB)
}
