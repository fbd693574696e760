package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DType is the numeric encoding of an embedding buffer. Buffers are a plain
// little-endian sequence of values without a length prefix; the length is
// derived from the buffer size on decode.
type DType string

const (
	// Float32 stores IEEE 754 single precision values (4 bytes each).
	Float32 DType = "float32"
	// Float64 stores IEEE 754 double precision values (8 bytes each).
	Float64 DType = "float64"
)

// ParseDType resolves a dtype name. Numpy-style aliases are accepted.
func ParseDType(name string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float32", "f32", "f4", "single":
		return Float32, nil
	case "float64", "f64", "f8", "double", "float", "":
		return Float64, nil
	default:
		return "", fmt.Errorf("vector: unsupported dtype %q", name)
	}
}

// Size returns the width in bytes of one value.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a supported dtype.
func (d DType) Valid() bool { return d.Size() > 0 }

// Encode converts vec into a buffer of d-typed values. An empty vector
// encodes to nil, which is stored as NULL.
func (d DType) Encode(vec []float64) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	switch d {
	case Float32:
		b := make([]byte, len(vec)*4)
		for i, v := range vec {
			binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(v)))
		}
		return b, nil
	case Float64:
		b := make([]byte, len(vec)*8)
		for i, v := range vec {
			binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("vector: unsupported dtype %q", string(d))
	}
}

// Decode reinterprets b as d-typed values.
func (d DType) Decode(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	size := d.Size()
	if size == 0 {
		return nil, fmt.Errorf("vector: unsupported dtype %q", string(d))
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("vector: invalid %s embedding blob length %d (not multiple of %d)", d, len(b), size)
	}
	n := len(b) / size
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		if d == Float32 {
			vec[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		} else {
			vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	}
	return vec, nil
}

// ToFloat32 narrows vec to single precision.
func ToFloat32(vec []float64) []float32 {
	if vec == nil {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
