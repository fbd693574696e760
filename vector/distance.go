package vector

import (
	"github.com/viant/vec/search"
)

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude. a and b must have the same length.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b))
}

// Euclidean returns the L2 distance between a and b, which must have the
// same length.
func Euclidean(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return search.Float32s(a).EuclideanDistance(b)
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// Normalize returns v scaled to unit length, or nil when v has zero
// magnitude.
func Normalize(v []float32) []float32 {
	m := Magnitude(v)
	if m == 0 {
		return nil
	}
	u := make([]float32, len(v))
	for i, x := range v {
		u[i] = x / m
	}
	return u
}
