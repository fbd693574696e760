package vector

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	// Orthogonal vectors -> similarity 0
	if sim := Cosine(a, b); math.Abs(sim) > 1e-6 {
		t.Fatalf("Cosine(a,b) = %v; want 0", sim)
	}

	// Same direction -> similarity 1
	if sim := Cosine(a, c); math.Abs(sim-1) > 1e-6 {
		t.Fatalf("Cosine(a,c) = %v; want 1", sim)
	}

	if sim := Cosine(a, []float32{-1, 0}); math.Abs(sim+1) > 1e-6 {
		t.Fatalf("Cosine(a,-a) = %v; want -1", sim)
	}
	if sim := Cosine(a, []float32{0, 0}); sim != 0 {
		t.Fatalf("Cosine with zero vector = %v; want 0", sim)
	}
	if sim := Cosine(a, []float32{1, 0, 0}); sim != 0 {
		t.Fatalf("Cosine with mismatched dims = %v; want 0", sim)
	}
}

func TestEuclidean(t *testing.T) {
	if d := Euclidean([]float32{0, 0}, []float32{3, 4}); math.Abs(float64(d)-5) > 1e-5 {
		t.Fatalf("Euclidean(0,0)-(3,4) = %v, want 5", d)
	}
	if d := Euclidean(nil, nil); d != 0 {
		t.Fatalf("Euclidean(nil,nil) = %v, want 0", d)
	}
}

func TestMagnitude(t *testing.T) {
	if m := Magnitude([]float32{3, 4}); math.Abs(float64(m)-5) > 1e-5 {
		t.Fatalf("Magnitude(3,4) = %v, want 5", m)
	}
	if m := Magnitude(nil); m != 0 {
		t.Fatalf("Magnitude(nil) = %v, want 0", m)
	}
}

func TestNormalize(t *testing.T) {
	u := Normalize([]float32{3, 4})
	if len(u) != 2 || math.Abs(float64(u[0])-0.6) > 1e-6 || math.Abs(float64(u[1])-0.8) > 1e-6 {
		t.Fatalf("Normalize(3,4) = %v, want [0.6 0.8]", u)
	}
	if u := Normalize([]float32{0, 0}); u != nil {
		t.Fatalf("Normalize(0,0) = %v, want nil", u)
	}
}
